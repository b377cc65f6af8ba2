package port

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/metrics"
)

const (
	// Command names, as registered in the Slack app manifest.

	KudosCmd         = "/kudos"
	ViewKudosCmd     = "/view_kudos"
	MyAllocationsCmd = "/my_allocations"
	ResetKudosCmd    = "/reset_kudos"
	StartPollCmd     = "/start_poll"
	VoteCmd          = "/vote"
	VoteCountCmd     = "/vote_count"
	ClosePollCmd     = "/close_poll"

	// Argument expressions. Mentions arrive escaped as <@U123> or <@U123|name>.

	KudosExpression = `(?s)^\s*<@(?P<recipient_id>[A-Z0-9]+)(?:\|[^>]*)?>\s+\$?(?P<amount>-?\d+)\s+(?P<note>\S.*?)\s*$`
	VoteExpression  = `(?s)^\s*<@(?P<recipient_id>[A-Z0-9]+)(?:\|[^>]*)?>\s+(?P<note>\S.*?)\s*$`

	// Capture Keys

	ckRecipientID = "recipient_id"
	ckAmount      = "amount"
	ckNote        = "note"
)

// SlackClient is the part of the Slack Web API the bot uses.
type SlackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

var _ SlackClient = (*slack.Client)(nil)

// Features switches whole command families on or off.
type Features struct {
	Kudos    bool
	GoldStar bool
}

type ConsumerOptions struct {
	SigningSecret string
	Policy        ChunkPolicy
	Features      Features
}

type SlackConsumer struct {
	app       *app.Application
	client    SlackClient
	announcer *Announcer

	signingSecret string
	policy        ChunkPolicy
	features      Features

	expressions map[string]*regexp.Regexp
	postWebhook func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

func NewSlackConsumer(application *app.Application, client SlackClient, announcer *Announcer, opts ConsumerOptions) *SlackConsumer {
	return &SlackConsumer{
		app:           application,
		client:        client,
		announcer:     announcer,
		signingSecret: opts.SigningSecret,
		policy:        opts.Policy,
		features:      opts.Features,
		expressions: map[string]*regexp.Regexp{
			KudosCmd: regexp.MustCompile(KudosExpression),
			VoteCmd:  regexp.MustCompile(VoteExpression),
		},
		postWebhook: slack.PostWebhookContext,
	}
}

// Handler serves Slack's slash command requests. The first message of a reply is the HTTP
// response; any overflow goes to the command's response_url.
func (s *SlackConsumer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		sv, err := slack.NewSecretsVerifier(c.Request.Header, s.signingSecret)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("missing slack signature headers")
			c.Status(http.StatusBadRequest)
			return
		}
		if _, err := sv.Write(body); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		if err := sv.Ensure(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("slack signature rejected")
			c.Status(http.StatusUnauthorized)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		cmd, err := slack.SlashCommandParse(c.Request)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		inv := &Invocation{
			Command:     cmd.Command,
			UserID:      cmd.UserID,
			ChannelID:   cmd.ChannelID,
			Text:        cmd.Text,
			ResponseURL: cmd.ResponseURL,
		}
		zerolog.Ctx(ctx).Debug().Object("invocation", inv).Msg("slash command received")

		var msgs []*slack.Msg
		for _, reply := range s.ProcessCommand(ctx, inv) {
			msgs = append(msgs, s.policy.Render(reply)...)
		}
		if len(msgs) == 0 {
			c.Status(http.StatusOK)
			return
		}

		c.JSON(http.StatusOK, msgs[0])
		if len(msgs) > 1 {
			go s.followUp(context.WithoutCancel(ctx), inv.ResponseURL, msgs[1:])
		}
	}
}

func (s *SlackConsumer) followUp(ctx context.Context, responseURL string, msgs []*slack.Msg) {
	for _, msg := range msgs {
		webhook := &slack.WebhookMessage{
			Text:         msg.Text,
			ResponseType: msg.ResponseType,
		}
		if len(msg.Blocks.BlockSet) > 0 {
			blocks := msg.Blocks
			webhook.Blocks = &blocks
		}
		if err := s.postWebhook(ctx, responseURL, webhook); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("could not deliver follow up message")
			return
		}
	}
}

// channelMembers checks candidates against the members of the channel the command came from.
func (s *SlackConsumer) channelMembers(channelID string) func(ctx context.Context, userID string) (bool, error) {
	return func(ctx context.Context, userID string) (bool, error) {
		params := &slack.GetUsersInConversationParameters{ChannelID: channelID, Limit: 200}
		for {
			members, cursor, err := s.client.GetUsersInConversationContext(ctx, params)
			if err != nil {
				return false, fmt.Errorf("listing members of %s: %w", channelID, err)
			}
			for _, member := range members {
				if member == userID {
					return true, nil
				}
			}
			if cursor == "" {
				return false, nil
			}
			params.Cursor = cursor
		}
	}
}

func recordOutcome(command, outcome string) {
	metrics.Commands.WithLabelValues(command, outcome).Inc()
}
