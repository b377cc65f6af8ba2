// Package schedule fires the weekly poll job.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Job func(ctx context.Context)

type Scheduler struct {
	cron     *cron.Cron
	entry    cron.EntryID
	location *time.Location
}

// New parses a standard five field cron spec evaluated in loc. Missed runs are not replayed.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{log.Logger}),
		cron.WithChain(cron.Recover(cronLogger{log.Logger})),
	)

	id, err := c.AddFunc(spec, func() {
		logger := log.With().Str("job", "open_poll").Logger()
		job(logger.WithContext(context.Background()))
	})
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, entry: id, location: loc}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Time("next_run", s.NextAfter(time.Now())).Msg("poll scheduler started")
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// NextAfter reports when the job would fire after t, without starting the scheduler.
func (s *Scheduler) NextAfter(t time.Time) time.Time {
	return s.cron.Entry(s.entry).Schedule.Next(t.In(s.location))
}

type cronLogger struct {
	zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
