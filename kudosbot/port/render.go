package port

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/domain"
)

var hundred = decimal.NewFromInt(100)

func dollars(amount int) string {
	return "$" + decimal.NewFromInt(int64(amount)).String()
}

// share is part's percentage of whole, to one decimal place.
func share(part, whole int) string {
	if whole == 0 {
		return "0.0%"
	}
	pct := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole)))
	return pct.StringFixed(1) + "%"
}

func kudosGivenReply(giverID string, tx *domain.Transaction) *Reply {
	return &Reply{
		Text:        fmt.Sprintf("%s gave %s %s in kudos!", mention(giverID), mention(tx.ReceiverID), dollars(tx.Amount)),
		Title:       "Kudos!",
		Description: fmt.Sprintf(":tada: %s sent kudos to %s!", mention(giverID), mention(tx.ReceiverID)),
		Fields: []Field{
			{Name: "Amount", Value: dollars(tx.Amount)},
			{Name: "Message", Value: tx.Message},
		},
		Footer: "Keep up the great work!",
	}
}

// receivedReply lists every receiver's messages, then a summary table of totals.
func receivedReply(summaries []*domain.ReceivedSummary, names map[string]string) *Reply {
	reply := &Reply{
		Ephemeral: true,
		Title:     "Kudos Received",
	}

	for _, summary := range summaries {
		var b strings.Builder
		b.WriteString(dollars(summary.Total))
		b.WriteString("\nMessages:")
		for _, message := range summary.Messages {
			b.WriteString("\n• ")
			b.WriteString(message)
		}
		reply.Fields = append(reply.Fields, Field{Name: mention(summary.ReceiverID), Value: b.String()})
	}

	reply.Fields = append(reply.Fields, Field{
		Name:  "Total Kudos Summary",
		Value: renderSummaryTable(summaries, names),
		Code:  true,
	})

	return reply
}

func renderSummaryTable(summaries []*domain.ReceivedSummary, names map[string]string) string {
	grandTotal := 0
	for _, summary := range summaries {
		grandTotal += summary.Total
	}

	tableData := make([][]string, len(summaries))
	for i, summary := range summaries {
		name := names[summary.ReceiverID]
		if name == "" {
			name = summary.ReceiverID
		}
		tableData[i] = []string{
			name,
			dollars(summary.Total),
			strconv.Itoa(len(summary.Messages)),
			share(summary.Total, grandTotal),
		}
	}

	buf := bytes.NewBuffer([]byte{})
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"User", "Total", "Kudos", "Share"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk(tableData)
	table.Render()

	return strings.TrimSuffix(buf.String(), "\n")
}

func announcementReply(a *app.Announcement) *Reply {
	return &Reply{
		Text:        "<!channel> " + a.Title,
		Title:       a.Title,
		Description: "<!channel> " + a.Description,
		Fields: []Field{
			{Name: "How to Vote", Value: a.Instructions},
		},
		Footer: "Poll for week " + a.Week.String(),
	}
}

func resultsReply(r *domain.PollResults) *Reply {
	winners := make([]string, len(r.Winners))
	for i, id := range r.Winners {
		winners[i] = mention(id)
	}

	reply := &Reply{
		Text:        "Gold Star Results!",
		Title:       "Gold Star Results!",
		Description: fmt.Sprintf("Congrats to %s for this week's Gold Star :star:!", strings.Join(winners, ", ")),
	}

	if len(r.RunnersUp) > 0 {
		runnersUp := make([]string, len(r.RunnersUp))
		for i, id := range r.RunnersUp {
			runnersUp[i] = mention(id)
		}
		reply.Fields = append(reply.Fields, Field{Name: "Runners Up", Value: strings.Join(runnersUp, ", ")})
	}

	if len(r.Comments) > 0 {
		var b strings.Builder
		for i, comment := range r.Comments {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("• ")
			b.WriteString(comment)
		}
		reply.Fields = append(reply.Fields, Field{Name: "Comments Submitted", Value: b.String()})
	}

	reply.Footer = fmt.Sprintf("%d votes cast in week %s", r.TotalVotes, r.Week)

	return reply
}
