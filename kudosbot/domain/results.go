package domain

import "sort"

// PollResults is what survives a closed poll. Ballots are discarded, comments are kept unattributed.
type PollResults struct {
	Week       Week
	TotalVotes int
	Winners    []string
	RunnersUp  []string
	Comments   []string
}

func (r *PollResults) NoVotes() bool {
	return r.TotalVotes == 0
}

// TallyVotes picks every candidate tied on the highest count as winners, and every candidate on
// the next distinct positive count as runners up. Comments keep vote order.
func TallyVotes(week Week, votes []*Vote) *PollResults {
	results := &PollResults{Week: week, TotalVotes: len(votes)}

	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.CandidateID]++
		results.Comments = append(results.Comments, v.Comment)
	}

	top, second := 0, 0
	for _, c := range counts {
		if c > top {
			second = top
			top = c
		} else if c < top && c > second {
			second = c
		}
	}

	for candidate, c := range counts {
		switch {
		case c == top:
			results.Winners = append(results.Winners, candidate)
		case second > 0 && c == second:
			results.RunnersUp = append(results.RunnersUp, candidate)
		}
	}
	sort.Strings(results.Winners)
	sort.Strings(results.RunnersUp)

	return results
}
