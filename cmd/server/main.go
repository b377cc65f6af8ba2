package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/yammine/kudos-go/kudosbot/adapter"
	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/config"
	"github.com/yammine/kudos-go/kudosbot/logging"
	"github.com/yammine/kudos-go/kudosbot/port"
	"github.com/yammine/kudos-go/kudosbot/schedule"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Crashing due to invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debugSQL := cfg.LogLevel == "trace"

	kudosDB, err := adapter.Open(cfg.KudosStore.Driver, cfg.KudosStore.DSN, debugSQL)
	if err != nil {
		return fmt.Errorf("opening kudos store: %w", err)
	}
	ledger := adapter.NewLedgerRepository(kudosDB)
	if err := ledger.Migrate(); err != nil {
		return fmt.Errorf("migrating kudos store: %w", err)
	}

	pollsDB, err := adapter.Open(cfg.GoldStarStore.Driver, cfg.GoldStarStore.DSN, debugSQL)
	if err != nil {
		return fmt.Errorf("opening gold star store: %w", err)
	}
	polls := adapter.NewPollRepository(pollsDB)
	if err := polls.Migrate(); err != nil {
		return fmt.Errorf("migrating gold star store: %w", err)
	}

	application := app.NewApplication(ledger, polls, app.NewAdmins(cfg.AdminUserIDs...),
		app.WithLocation(cfg.PollTimezone))

	client := slack.New(cfg.SlackBotToken)
	policy := port.ChunkPolicy{FieldLimit: cfg.SlackFieldLimit, MessageLimit: cfg.SlackMessageLimit}
	announcer := port.NewAnnouncer(client, cfg.PollChannelID, policy)
	consumer := port.NewSlackConsumer(application, client, announcer, port.ConsumerOptions{
		SigningSecret: cfg.SlackSigningSecret,
		Policy:        policy,
		Features:      port.Features{Kudos: cfg.EnableKudos, GoldStar: cfg.EnableGoldStar},
	})

	if cfg.EnableGoldStar {
		scheduler, err := schedule.New(cfg.PollSchedule, cfg.PollTimezone, announcer.OpenPollJob(application))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())
	r.POST("/slack/commands", consumer.Handler())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
