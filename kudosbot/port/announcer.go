package port

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/yammine/kudos-go/kudosbot/app"
)

// Announcer posts poll announcements to the Gold Star channel.
type Announcer struct {
	client    SlackClient
	channelID string
	policy    ChunkPolicy
}

func NewAnnouncer(client SlackClient, channelID string, policy ChunkPolicy) *Announcer {
	return &Announcer{client: client, channelID: channelID, policy: policy}
}

// Announce posts the announcement, or a notice when the poll was already open.
func (a *Announcer) Announce(ctx context.Context, announcement *app.Announcement) error {
	reply := announcementReply(announcement)
	if announcement.AlreadyOpen {
		reply = &Reply{Text: AlreadyOpenResponse}
	}

	for _, msg := range a.policy.Render(reply) {
		options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
		if len(msg.Blocks.BlockSet) > 0 {
			options = append(options, slack.MsgOptionBlocks(msg.Blocks.BlockSet...))
		}
		if _, _, err := a.client.PostMessageContext(ctx, a.channelID, options...); err != nil {
			return fmt.Errorf("posting to %s: %w", a.channelID, err)
		}
	}

	return nil
}

// OpenPollJob is the scheduled weekly run: open the poll, then tell the channel.
func (a *Announcer) OpenPollJob(application *app.Application) func(ctx context.Context) {
	return func(ctx context.Context) {
		announcement, err := application.OpenPoll(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("scheduled poll could not be opened")
			return
		}
		if err := a.Announce(ctx, announcement); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Stringer("week", announcement.Week).Msg("could not post poll announcement")
		}
	}
}
