package domain

import (
	"fmt"
	"time"

	"github.com/yammine/kudos-go"
)

const (
	ErrPollNotOpen          kudos.Sentinel = "poll is not open"
	ErrAlreadyVoted         kudos.Sentinel = "already voted in this poll"
	ErrCandidateNotEligible kudos.Sentinel = "candidate is not eligible"
)

// Week identifies a poll by ISO-8601 year and week number.
type Week struct {
	Year   int
	Number int
}

func WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()
	return Week{Year: year, Number: week}
}

func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Number)
}

// PollWeek is the open/closed flag for one week's Gold Star poll.
type PollWeek struct {
	Year   int  `gorm:"primaryKey;autoIncrement:false"`
	Week   int  `gorm:"primaryKey;autoIncrement:false"`
	IsOpen bool `gorm:"not null"`
}

func (PollWeek) TableName() string {
	return "poll_status"
}

func (p PollWeek) Key() Week {
	return Week{Year: p.Year, Number: p.Week}
}

// Vote is one ballot. A voter gets one per week.
type Vote struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	Year        int    `gorm:"index:idx_votes_week_voter;not null"`
	Week        int    `gorm:"index:idx_votes_week_voter;not null"`
	VoterID     string `gorm:"index:idx_votes_week_voter;not null"`
	CandidateID string `gorm:"not null"`
	Comment     string
}

func NewVote(week Week, voterID, candidateID, comment string) *Vote {
	return &Vote{
		Year:        week.Year,
		Week:        week.Number,
		VoterID:     voterID,
		CandidateID: candidateID,
		Comment:     comment,
	}
}
