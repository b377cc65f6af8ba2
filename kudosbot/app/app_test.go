package app_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yammine/kudos-go/kudosbot/adapter"
	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/domain"
)

const admin = "UADMIN0001"

type testEnv struct {
	app    *app.Application
	ledger *adapter.LedgerRepository
	polls  *adapter.PollRepository
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	kudosDB, err := adapter.Open(adapter.DriverSQLite, filepath.Join(dir, "kudos.db"), false)
	require.NoError(t, err)
	pollsDB, err := adapter.Open(adapter.DriverSQLite, filepath.Join(dir, "polls.db"), false)
	require.NoError(t, err)

	env := &testEnv{
		ledger: adapter.NewLedgerRepository(kudosDB),
		polls:  adapter.NewPollRepository(pollsDB),
		now:    time.Date(2026, 10, 12, 6, 18, 0, 0, time.UTC),
	}
	require.NoError(t, env.ledger.Migrate())
	require.NoError(t, env.polls.Migrate())

	env.app = app.NewApplication(env.ledger, env.polls, app.NewAdmins(admin),
		app.WithClock(func() time.Time { return env.now }))

	return env
}

func anyone(context.Context, string) (bool, error) { return true, nil }

func TestGive(t *testing.T) {
	ctx := context.Background()

	t.Run("every valid amount debits the giver once", func(t *testing.T) {
		env := newTestEnv(t)
		for amount := domain.MinAmount; amount <= domain.MaxAmount; amount += domain.AmountStep {
			giver := fmt.Sprintf("UGIVER%03d", amount)

			out, err := env.app.Give(ctx, &app.GiveInput{GiverID: giver, ReceiverID: "URECEIVER", Amount: amount, Message: "nice"})
			require.NoError(t, err)
			assert.Equal(t, domain.DefaultAllowance-amount, out.Remaining)

			remaining, err := env.app.MyAllocation(ctx, giver)
			require.NoError(t, err)
			assert.Equal(t, domain.DefaultAllowance-amount, remaining)
		}

		txs, err := env.ledger.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 20)
	})

	t.Run("invalid amounts are rejected without side effects", func(t *testing.T) {
		env := newTestEnv(t)
		for _, amount := range []int{3, 101, 7, 0, -5} {
			_, err := env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: amount, Message: "x"})
			assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %d", amount)
		}

		txs, err := env.ledger.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("amount larger than the allowance", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 150, Message: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 60, Message: "first"})
		require.NoError(t, err)

		_, err = env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 50, Message: "second"})
		assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)

		remaining, err := env.app.MyAllocation(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, 40, remaining)

		txs, err := env.ledger.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("allowance can be spent to exactly zero", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 100, Message: "all in"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Remaining)

		remaining, err := env.app.MyAllocation(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		_, err = env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 5, Message: "more"})
		assert.ErrorIs(t, err, domain.ErrInsufficientAllowance)
	})
}

func TestViewReceived(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	gifts := []app.GiveInput{
		{GiverID: "U1", ReceiverID: "U2", Amount: 10, Message: "shipped it"},
		{GiverID: "U3", ReceiverID: "U4", Amount: 5, Message: "code review"},
		{GiverID: "U3", ReceiverID: "U2", Amount: 20, Message: "on call"},
	}
	for i := range gifts {
		_, err := env.app.Give(ctx, &gifts[i])
		require.NoError(t, err)
	}

	got, err := env.app.ViewReceived(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &domain.ReceivedSummary{ReceiverID: "U2", Total: 30, Messages: []string{"shipped it", "on call"}}, got[0])
	assert.Equal(t, &domain.ReceivedSummary{ReceiverID: "U4", Total: 5, Messages: []string{"code review"}}, got[1])
}

func TestMyAllocation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	remaining, err := env.app.MyAllocation(ctx, "UNEW")
	require.NoError(t, err)
	assert.Equal(t, 100, remaining)

	remaining, err = env.app.MyAllocation(ctx, "UNEW")
	require.NoError(t, err)
	assert.Equal(t, 100, remaining)

	var rows int64
	require.NoError(t, env.ledger.DB.Model(&domain.Allocation{}).Where("user_id = ?", "UNEW").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()

	t.Run("admins restore every known user", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 40, Message: "a"})
		require.NoError(t, err)
		_, err = env.app.Give(ctx, &app.GiveInput{GiverID: "U3", ReceiverID: "U1", Amount: 100, Message: "b"})
		require.NoError(t, err)
		_, err = env.app.MyAllocation(ctx, "U4")
		require.NoError(t, err)

		restored, err := env.app.ResetAll(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 3, restored)

		for _, user := range []string{"U1", "U3", "U4"} {
			var allocation domain.Allocation
			require.NoError(t, env.ledger.DB.First(&allocation, "user_id = ?", user).Error)
			assert.Equal(t, 100, allocation.Remaining, user)
		}

		txs, err := env.ledger.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)

		summaries, err := env.app.ViewReceived(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})

	t.Run("non-admins are refused", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.Give(ctx, &app.GiveInput{GiverID: "U1", ReceiverID: "U2", Amount: 40, Message: "a"})
		require.NoError(t, err)

		_, err = env.app.ResetAll(ctx, "U1")
		assert.ErrorIs(t, err, app.ErrPermissionDenied)

		remaining, err := env.app.MyAllocation(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, 60, remaining)
	})
}

func TestPollLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("open is idempotent", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)
		assert.False(t, first.AlreadyOpen)
		assert.Equal(t, domain.Week{Year: 2026, Number: 42}, first.Week)
		assert.Equal(t, app.PollTitle, first.Title)

		second, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)
		assert.True(t, second.AlreadyOpen)

		var weeks []domain.PollWeek
		require.NoError(t, env.polls.DB.Find(&weeks).Error)
		assert.Equal(t, []domain.PollWeek{{Year: 2026, Week: 42, IsOpen: true}}, weeks)
	})

	t.Run("manual start requires an admin", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.app.StartPoll(ctx, "U1")
		assert.ErrorIs(t, err, app.ErrPermissionDenied)

		_, err = env.app.VoteCount(ctx)
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)

		announcement, err := env.app.StartPoll(ctx, admin)
		require.NoError(t, err)
		assert.False(t, announcement.AlreadyOpen)
	})

	t.Run("voting requires an open poll", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U2", Comment: "x", IsEligible: anyone})
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)
	})

	t.Run("one vote per user per week", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		require.NoError(t, env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U2", Comment: "x", IsEligible: anyone}))
		err = env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U3", Comment: "y", IsEligible: anyone})
		assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

		count, err := env.app.VoteCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("candidates must be eligible", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		members := func(_ context.Context, id string) (bool, error) { return id == "U2", nil }
		err = env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U9", Comment: "x", IsEligible: members})
		assert.ErrorIs(t, err, domain.ErrCandidateNotEligible)

		require.NoError(t, env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U2", Comment: "x", IsEligible: members}))
	})

	t.Run("eligibility is checked before the poll state", func(t *testing.T) {
		env := newTestEnv(t)
		nobody := func(context.Context, string) (bool, error) { return false, nil }
		err := env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U2", IsEligible: nobody})
		assert.ErrorIs(t, err, domain.ErrCandidateNotEligible)
	})

	t.Run("eligibility lookup failures are returned", func(t *testing.T) {
		env := newTestEnv(t)
		boom := errors.New("slack is down")
		failing := func(context.Context, string) (bool, error) { return false, boom }
		err := env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "U1", CandidateID: "U2", IsEligible: failing})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("close tallies and purges", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		ballots := []struct{ voter, candidate string }{
			{"V1", "A"}, {"V2", "B"}, {"V3", "A"}, {"V4", "C"}, {"V5", "B"}, {"V6", "A"}, {"V7", "B"},
		}
		for _, b := range ballots {
			require.NoError(t, env.app.CastVote(ctx, &app.CastVoteInput{
				VoterID: b.voter, CandidateID: b.candidate, Comment: "from " + b.voter, IsEligible: anyone,
			}))
		}

		results, err := env.app.ClosePoll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, results.Winners)
		assert.Equal(t, []string{"C"}, results.RunnersUp)
		assert.Equal(t, 7, results.TotalVotes)
		assert.Equal(t, []string{"from V1", "from V2", "from V3", "from V4", "from V5", "from V6", "from V7"}, results.Comments)

		var remaining int64
		require.NoError(t, env.polls.DB.Model(&domain.Vote{}).Count(&remaining).Error)
		assert.Zero(t, remaining)

		_, err = env.app.VoteCount(ctx)
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)

		_, err = env.app.ClosePoll(ctx)
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)
	})

	t.Run("single candidate has no runners up", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		for _, voter := range []string{"V1", "V2", "V3", "V4", "V5"} {
			require.NoError(t, env.app.CastVote(ctx, &app.CastVoteInput{VoterID: voter, CandidateID: "A", IsEligible: anyone}))
		}

		results, err := env.app.ClosePoll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, results.Winners)
		assert.Empty(t, results.RunnersUp)
	})

	t.Run("close with no votes", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		results, err := env.app.ClosePoll(ctx)
		require.NoError(t, err)
		assert.True(t, results.NoVotes())

		_, err = env.app.VoteCount(ctx)
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)
	})

	t.Run("poll can be reopened after closing", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)
		require.NoError(t, env.app.CastVote(ctx, &app.CastVoteInput{VoterID: "V1", CandidateID: "A", IsEligible: anyone}))
		_, err = env.app.ClosePoll(ctx)
		require.NoError(t, err)

		announcement, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)
		assert.False(t, announcement.AlreadyOpen)

		count, err := env.app.VoteCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("the same week number in another year is a different poll", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)

		// 53 weeks on, since 2026 has a week 53.
		env.now = env.now.AddDate(0, 0, 53*7)
		count, err := env.app.VoteCount(ctx)
		assert.ErrorIs(t, err, domain.ErrPollNotOpen)
		assert.Zero(t, count)

		announcement, err := env.app.OpenPoll(ctx)
		require.NoError(t, err)
		assert.False(t, announcement.AlreadyOpen)
		assert.Equal(t, domain.Week{Year: 2027, Number: 42}, announcement.Week)
	})
}

func TestCurrentWeekUsesLocation(t *testing.T) {
	eastern, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Monday 02:00 UTC is still Sunday evening in New York.
	now := time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)
	a := app.NewApplication(nil, nil, nil, app.WithClock(func() time.Time { return now }), app.WithLocation(eastern))
	assert.Equal(t, domain.Week{Year: 2026, Number: 41}, a.CurrentWeek())

	utc := app.NewApplication(nil, nil, nil, app.WithClock(func() time.Time { return now }))
	assert.Equal(t, domain.Week{Year: 2026, Number: 42}, utc.CurrentWeek())
}
