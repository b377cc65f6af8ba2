package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yammine/kudos-go"
	"github.com/yammine/kudos-go/kudosbot/domain"
	"github.com/yammine/kudos-go/kudosbot/metrics"
)

const (
	ErrPermissionDenied kudos.Sentinel = "permission denied"
	ErrStoreUnavailable kudos.Sentinel = "store unavailable"
)

const (
	PollTitle        = "Gold Star Vote!"
	PollDescription  = "Happy Monday! Vote for someone to receive the Gold Star for their hard work last week."
	PollInstructions = "Use `/vote @user your comment` to cast your vote."
)

// Admins is the static allow-list for privileged commands.
type Admins map[string]struct{}

func NewAdmins(userIDs ...string) Admins {
	a := make(Admins, len(userIDs))
	for _, id := range userIDs {
		a[id] = struct{}{}
	}
	return a
}

func (a Admins) Contains(userID string) bool {
	_, ok := a[userID]
	return ok
}

type Application struct {
	ledger   LedgerRepository
	polls    PollRepository
	admins   Admins
	location *time.Location
	now      func() time.Time
}

type Option func(*Application)

// WithClock replaces time.Now, which decides the current poll week.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// WithLocation sets the time zone that poll weeks are computed in.
func WithLocation(loc *time.Location) Option {
	return func(a *Application) { a.location = loc }
}

func NewApplication(ledger LedgerRepository, polls PollRepository, admins Admins, opts ...Option) *Application {
	a := &Application{
		ledger:   ledger,
		polls:    polls,
		admins:   admins,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a Application) CurrentWeek() domain.Week {
	return domain.WeekOf(a.now().In(a.location))
}

func (a Application) IsAdmin(userID string) bool {
	return a.admins.Contains(userID)
}

// Kudos

func (a Application) Give(ctx context.Context, in *GiveInput) (*GiveOutput, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	allocation, err := a.ledger.Give(ctx, in, func(ctx context.Context, fn *GiveFuncIn) (*GiveFuncOut, error) {
		t, err := fn.Allocation.Give(fn.Input.ReceiverID, fn.Input.Amount, fn.Input.Message)
		if err != nil {
			return nil, err
		}
		tx = t
		return &GiveFuncOut{Transaction: t}, nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	metrics.KudosGiven.Inc()
	metrics.KudosPointsGiven.Add(float64(in.Amount))
	zerolog.Ctx(ctx).Info().
		Str("giver", in.GiverID).
		Str("receiver", in.ReceiverID).
		Int("amount", in.Amount).
		Int("remaining", allocation.Remaining).
		Msg("kudos given")

	return &GiveOutput{Transaction: tx, Remaining: allocation.Remaining}, nil
}

func (a Application) ViewReceived(ctx context.Context) ([]*domain.ReceivedSummary, error) {
	txs, err := a.ledger.ListTransactions(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	return domain.SummarizeReceived(txs), nil
}

func (a Application) MyAllocation(ctx context.Context, userID string) (int, error) {
	allocation, err := a.ledger.GetOrCreateAllocation(ctx, userID)
	if err != nil {
		return 0, storeError(err)
	}

	return allocation.Remaining, nil
}

func (a Application) ResetAll(ctx context.Context, callerID string) (int, error) {
	if !a.IsAdmin(callerID) {
		return 0, ErrPermissionDenied
	}

	restored, err := a.ledger.ResetAllocations(ctx)
	if err != nil {
		return 0, storeError(err)
	}

	zerolog.Ctx(ctx).Info().Str("caller", callerID).Int("restored", restored).Msg("kudos allocations reset")

	return restored, nil
}

// Gold Star

type Announcement struct {
	Week         domain.Week
	AlreadyOpen  bool
	Title        string
	Description  string
	Instructions string
}

// OpenPoll opens the current week's poll. It is what the scheduler runs.
func (a Application) OpenPoll(ctx context.Context) (*Announcement, error) {
	week := a.CurrentWeek()

	opened, err := a.polls.OpenPoll(ctx, week)
	if err != nil {
		return nil, storeError(err)
	}

	if opened {
		metrics.PollsOpened.Inc()
		zerolog.Ctx(ctx).Info().Stringer("week", week).Msg("poll opened")
	}

	return &Announcement{
		Week:         week,
		AlreadyOpen:  !opened,
		Title:        PollTitle,
		Description:  PollDescription,
		Instructions: PollInstructions,
	}, nil
}

// StartPoll is the manual, admin-only way to open the poll.
func (a Application) StartPoll(ctx context.Context, callerID string) (*Announcement, error) {
	if !a.IsAdmin(callerID) {
		return nil, ErrPermissionDenied
	}

	return a.OpenPoll(ctx)
}

func (a Application) CastVote(ctx context.Context, in *CastVoteInput) error {
	if in.IsEligible != nil {
		eligible, err := in.IsEligible(ctx, in.CandidateID)
		if err != nil {
			return fmt.Errorf("checking eligibility: %w", err)
		}
		if !eligible {
			return domain.ErrCandidateNotEligible
		}
	}

	week := a.CurrentWeek()
	if err := a.polls.CastVote(ctx, domain.NewVote(week, in.VoterID, in.CandidateID, in.Comment)); err != nil {
		return storeError(err)
	}

	metrics.VotesCast.Inc()
	// Ballots are anonymous: never log voter or candidate.
	zerolog.Ctx(ctx).Info().Stringer("week", week).Msg("vote recorded")

	return nil
}

func (a Application) VoteCount(ctx context.Context) (int, error) {
	count, err := a.polls.CountVotes(ctx, a.CurrentWeek())
	if err != nil {
		return 0, storeError(err)
	}

	return count, nil
}

func (a Application) ClosePoll(ctx context.Context) (*domain.PollResults, error) {
	week := a.CurrentWeek()

	votes, err := a.polls.ClosePoll(ctx, week)
	if err != nil {
		return nil, storeError(err)
	}

	metrics.PollsClosed.Inc()
	results := domain.TallyVotes(week, votes)
	zerolog.Ctx(ctx).Info().Stringer("week", week).Int("votes", results.TotalVotes).Msg("poll closed")

	return results, nil
}

// storeError passes domain errors through and marks everything else as a store failure.
func storeError(err error) error {
	var sentinel kudos.Sentinel
	if errors.As(err, &sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
