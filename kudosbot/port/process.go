package port

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/domain"
)

const (
	// Responses

	GenericResponse      = "I don't understand what you're asking me :face_with_head_bandage:"
	GenericErrorResponse = "I seem to be experiencing an unexpected error :robot_face:"
	NotEnabledResponse   = "This feature is not enabled."

	KudosUsage = "Usage: `/kudos @user amount message`"
	VoteUsage  = "Usage: `/vote @user comment`"

	InvalidAmountResponse        = "Amount must be between $5 and $100, and in multiples of $5."
	InsufficientAllowanceMessage = "You don't have enough kudos left to give that much. Check `/my_allocations`."
	PermissionDeniedResponse     = "You do not have permission to use this command."
	PollNotOpenResponse          = "The poll is not currently open."
	AlreadyVotedResponse         = "You have already voted in this poll."
	NotEligibleResponse          = "You can only vote for members of this channel!"
	AlreadyOpenResponse          = "There is already an open poll."
	PollStartedResponse          = "Poll started manually!"
	NoVotesResponse              = "No votes were cast. The poll has been closed."

	// Outcomes

	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Invocation is one slash command as received from Slack.
type Invocation struct {
	Command     string
	UserID      string
	ChannelID   string
	Text        string
	ResponseURL string
}

func (i Invocation) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Command", i.Command).Str("UserID", i.UserID).Str("ChannelID", i.ChannelID).Str("Text", i.Text)
}

var _ zerolog.LogObjectMarshaler = (*Invocation)(nil)

// ProcessCommand runs a command and returns the replies to send, in order.
func (s *SlackConsumer) ProcessCommand(ctx context.Context, inv *Invocation) []*Reply {
	if !s.enabled(inv.Command) {
		recordOutcome(inv.Command, outcomeRejected)
		return []*Reply{ephemeral(NotEnabledResponse)}
	}

	var (
		replies []*Reply
		err     error
	)
	switch inv.Command {
	case KudosCmd:
		replies, err = s.processKudos(ctx, inv)
	case ViewKudosCmd:
		replies, err = s.processViewKudos(ctx)
	case MyAllocationsCmd:
		replies, err = s.processMyAllocations(ctx, inv)
	case ResetKudosCmd:
		replies, err = s.processResetKudos(ctx, inv)
	case StartPollCmd:
		replies, err = s.processStartPoll(ctx, inv)
	case VoteCmd:
		replies, err = s.processVote(ctx, inv)
	case VoteCountCmd:
		replies, err = s.processVoteCount(ctx)
	case ClosePollCmd:
		replies, err = s.processClosePoll(ctx)
	default:
		zerolog.Ctx(ctx).Error().Object("context", inv).Msg("Could not match command")
		recordOutcome("unknown", outcomeRejected)
		return []*Reply{ephemeral(GenericResponse)}
	}

	if err != nil {
		reply, expected := errorReply(err)
		if expected {
			recordOutcome(inv.Command, outcomeRejected)
			zerolog.Ctx(ctx).Info().Err(err).Object("context", inv).Msg("command rejected")
		} else {
			recordOutcome(inv.Command, outcomeError)
			zerolog.Ctx(ctx).Error().Err(err).Object("context", inv).Msg("Error processing command")
		}
		return []*Reply{reply}
	}

	recordOutcome(inv.Command, outcomeOK)
	return replies
}

func (s *SlackConsumer) enabled(command string) bool {
	switch command {
	case KudosCmd, ViewKudosCmd, MyAllocationsCmd, ResetKudosCmd:
		return s.features.Kudos
	case StartPollCmd, VoteCmd, VoteCountCmd, ClosePollCmd:
		return s.features.GoldStar
	}
	return true
}

// usageError is returned when a command's arguments don't parse.
type usageError string

func (u usageError) Error() string { return string(u) }

// errorReply maps an error to what the invoking user sees. expected is false for failures the
// user can't fix.
func errorReply(err error) (reply *Reply, expected bool) {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return &Reply{Ephemeral: true, Text: string(usage)}, true
	case errors.Is(err, domain.ErrInvalidAmount):
		return ephemeral(InvalidAmountResponse), true
	case errors.Is(err, domain.ErrInsufficientAllowance):
		return ephemeral(InsufficientAllowanceMessage), true
	case errors.Is(err, app.ErrPermissionDenied):
		return ephemeral(PermissionDeniedResponse), true
	case errors.Is(err, domain.ErrPollNotOpen):
		return ephemeral(PollNotOpenResponse), true
	case errors.Is(err, domain.ErrAlreadyVoted):
		return ephemeral(AlreadyVotedResponse), true
	case errors.Is(err, domain.ErrCandidateNotEligible):
		return ephemeral(NotEligibleResponse), true
	default:
		return ephemeral(GenericErrorResponse), false
	}
}

// Kudos

func (s *SlackConsumer) processKudos(ctx context.Context, inv *Invocation) ([]*Reply, error) {
	captures := extractNamedCaptures(s.expressions[KudosCmd], inv.Text)
	if captures == nil {
		return nil, usageError(KudosUsage)
	}
	amount, err := strconv.Atoi(captures[ckAmount])
	if err != nil {
		// Digits that overflow int can't be a valid amount either.
		return nil, domain.ErrInvalidAmount
	}

	out, err := s.app.Give(ctx, &app.GiveInput{
		GiverID:    inv.UserID,
		ReceiverID: captures[ckRecipientID],
		Amount:     amount,
		Message:    captures[ckNote],
	})
	if err != nil {
		return nil, err
	}

	return []*Reply{
		kudosGivenReply(inv.UserID, out.Transaction),
		ephemeral("You have %s left to give.", dollars(out.Remaining)),
	}, nil
}

func (s *SlackConsumer) processViewKudos(ctx context.Context) ([]*Reply, error) {
	summaries, err := s.app.ViewReceived(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return []*Reply{ephemeral("No kudos have been given yet.")}, nil
	}

	return []*Reply{receivedReply(summaries, s.displayNames(ctx, summaries))}, nil
}

func (s *SlackConsumer) processMyAllocations(ctx context.Context, inv *Invocation) ([]*Reply, error) {
	remaining, err := s.app.MyAllocation(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}

	return []*Reply{ephemeral("You have %s left to give.", dollars(remaining))}, nil
}

func (s *SlackConsumer) processResetKudos(ctx context.Context, inv *Invocation) ([]*Reply, error) {
	restored, err := s.app.ResetAll(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}

	return []*Reply{ephemeral("All kudos allocations have been reset to %s (%d users).", dollars(domain.DefaultAllowance), restored)}, nil
}

// displayNames resolves receivers for the summary table. Lookups that fail fall back to the ID.
func (s *SlackConsumer) displayNames(ctx context.Context, summaries []*domain.ReceivedSummary) map[string]string {
	names := make(map[string]string, len(summaries))
	for _, summary := range summaries {
		names[summary.ReceiverID] = summary.ReceiverID

		user, err := s.client.GetUserInfoContext(ctx, summary.ReceiverID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user", summary.ReceiverID).Msg("could not look up user")
			continue
		}
		switch {
		case user.Profile.DisplayName != "":
			names[summary.ReceiverID] = user.Profile.DisplayName
		case user.RealName != "":
			names[summary.ReceiverID] = user.RealName
		case user.Name != "":
			names[summary.ReceiverID] = user.Name
		}
	}
	return names
}

// Gold Star

func (s *SlackConsumer) processStartPoll(ctx context.Context, inv *Invocation) ([]*Reply, error) {
	announcement, err := s.app.StartPoll(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.announcer.Announce(ctx, announcement); err != nil {
		// The poll is open even if the channel never hears about it.
		zerolog.Ctx(ctx).Error().Err(err).Msg("could not post poll announcement")
	}

	if announcement.AlreadyOpen {
		return []*Reply{ephemeral(AlreadyOpenResponse)}, nil
	}
	return []*Reply{ephemeral(PollStartedResponse)}, nil
}

func (s *SlackConsumer) processVote(ctx context.Context, inv *Invocation) ([]*Reply, error) {
	captures := extractNamedCaptures(s.expressions[VoteCmd], inv.Text)
	if captures == nil {
		return nil, usageError(VoteUsage)
	}

	err := s.app.CastVote(ctx, &app.CastVoteInput{
		VoterID:     inv.UserID,
		CandidateID: captures[ckRecipientID],
		Comment:     captures[ckNote],
		IsEligible:  s.channelMembers(inv.ChannelID),
	})
	if err != nil {
		return nil, err
	}

	return []*Reply{ephemeral("Your vote for <@%s> has been recorded!", captures[ckRecipientID])}, nil
}

func (s *SlackConsumer) processVoteCount(ctx context.Context) ([]*Reply, error) {
	count, err := s.app.VoteCount(ctx)
	if err != nil {
		return nil, err
	}

	return []*Reply{ephemeral("Current vote tally:\n%d", count)}, nil
}

func (s *SlackConsumer) processClosePoll(ctx context.Context) ([]*Reply, error) {
	results, err := s.app.ClosePoll(ctx)
	if err != nil {
		return nil, err
	}
	if results.NoVotes() {
		return []*Reply{ephemeral(NoVotesResponse)}, nil
	}

	return []*Reply{resultsReply(results)}, nil
}

// extractNamedCaptures returns nil when input doesn't match.
func extractNamedCaptures(e *regexp.Regexp, input string) map[string]string {
	match := e.FindStringSubmatch(input)
	if match == nil {
		return nil
	}

	captures := make(map[string]string)
	for i, name := range e.SubexpNames() {
		if i != 0 && name != "" {
			captures[name] = match[i]
		}
	}
	return captures
}

func mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}
