package app

import (
	"context"

	"github.com/yammine/kudos-go/kudosbot/domain"
)

type GiveFunc = func(ctx context.Context, in *GiveFuncIn) (*GiveFuncOut, error)

type LedgerRepository interface {
	// Give runs giveFn against the giver's locked allocation and persists the result atomically.
	Give(ctx context.Context, in *GiveInput, giveFn GiveFunc) (*domain.Allocation, error)
	ListTransactions(ctx context.Context) ([]*domain.Transaction, error)
	GetOrCreateAllocation(ctx context.Context, userID string) (*domain.Allocation, error)
	ResetAllocations(ctx context.Context) (int, error)
}

type PollRepository interface {
	OpenPoll(ctx context.Context, week domain.Week) (bool, error)
	CastVote(ctx context.Context, vote *domain.Vote) error
	CountVotes(ctx context.Context, week domain.Week) (int, error)
	ClosePoll(ctx context.Context, week domain.Week) ([]*domain.Vote, error)
}

// Give

type GiveInput struct {
	GiverID    string
	ReceiverID string
	Amount     int
	Message    string
}

type GiveFuncIn struct {
	Allocation *domain.Allocation
	Input      *GiveInput
}

type GiveFuncOut struct {
	Transaction *domain.Transaction
}

type GiveOutput struct {
	Transaction *domain.Transaction
	Remaining   int
}

// CastVote

type CastVoteInput struct {
	VoterID     string
	CandidateID string
	Comment     string
	// IsEligible reports whether the candidate may receive votes, normally channel membership.
	IsEligible func(ctx context.Context, candidateID string) (bool, error)
}
