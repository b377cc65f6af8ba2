package domain

import (
	"sort"
	"time"
)

// Transaction is a single kudos gift. Rows are append-only.
type Transaction struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time

	GiverID    string `gorm:"index;not null"`
	ReceiverID string `gorm:"index;not null"`
	Amount     int    `gorm:"not null"`
	Message    string
}

func (Transaction) TableName() string {
	return "kudos"
}

type ReceivedSummary struct {
	ReceiverID string
	Total      int
	Messages   []string
}

// SummarizeReceived groups transactions by receiver. Messages keep the order of txs.
// The result is sorted by total, highest first, then by receiver ID.
func SummarizeReceived(txs []*Transaction) []*ReceivedSummary {
	byReceiver := make(map[string]*ReceivedSummary)
	summaries := make([]*ReceivedSummary, 0)

	for _, tx := range txs {
		s, ok := byReceiver[tx.ReceiverID]
		if !ok {
			s = &ReceivedSummary{ReceiverID: tx.ReceiverID}
			byReceiver[tx.ReceiverID] = s
			summaries = append(summaries, s)
		}
		s.Total += tx.Amount
		s.Messages = append(s.Messages, tx.Message)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Total != summaries[j].Total {
			return summaries[i].Total > summaries[j].Total
		}
		return summaries[i].ReceiverID < summaries[j].ReceiverID
	})

	return summaries
}
