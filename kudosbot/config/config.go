// Package config loads bot settings from the environment, an optional .env file and an
// optional config.yml in the working directory. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxSectionLength leaves room for a field title inside Slack's 3000 character section text.
const MaxSectionLength = 2900

type Store struct {
	Driver string
	DSN    string
}

type Config struct {
	Port      int
	LogLevel  string
	LogPretty bool

	KudosStore    Store
	GoldStarStore Store

	SlackBotToken      string
	SlackSigningSecret string
	SlackFieldLimit    int
	SlackMessageLimit  int

	PollChannelID string
	PollSchedule  string
	PollTimezone  *time.Location

	AdminUserIDs []string

	EnableKudos    bool
	EnableGoldStar bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 3000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("KUDOS_DB_DRIVER", "sqlite")
	v.SetDefault("KUDOS_DB_DSN", "kudos.db")
	v.SetDefault("GOLDSTAR_DB_DRIVER", "sqlite")
	v.SetDefault("GOLDSTAR_DB_DSN", "polls.db")
	v.SetDefault("SLACK_FIELD_LIMIT", 1024)
	v.SetDefault("SLACK_MESSAGE_LIMIT", 6000)
	v.SetDefault("POLL_SCHEDULE", "18 6 * * MON")
	v.SetDefault("POLL_TIMEZONE", "America/New_York")
	v.SetDefault("ENABLE_KUDOS", true)
	v.SetDefault("ENABLE_GOLDSTAR", true)
}

// Load reads configuration. A missing .env or config.yml is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config.yml: %w", err)
		}
	}

	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	loc, err := time.LoadLocation(v.GetString("POLL_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("POLL_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Port:      v.GetInt("PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogPretty: v.GetBool("LOG_PRETTY"),
		KudosStore: Store{
			Driver: v.GetString("KUDOS_DB_DRIVER"),
			DSN:    v.GetString("KUDOS_DB_DSN"),
		},
		GoldStarStore: Store{
			Driver: v.GetString("GOLDSTAR_DB_DRIVER"),
			DSN:    v.GetString("GOLDSTAR_DB_DSN"),
		},
		SlackBotToken:      v.GetString("BOT_USER_OAUTH_TOKEN"),
		SlackSigningSecret: v.GetString("SLACK_SIGNING_SECRET"),
		SlackFieldLimit:    v.GetInt("SLACK_FIELD_LIMIT"),
		SlackMessageLimit:  v.GetInt("SLACK_MESSAGE_LIMIT"),
		PollChannelID:      v.GetString("POLL_CHANNEL_ID"),
		PollSchedule:       v.GetString("POLL_SCHEDULE"),
		PollTimezone:       loc,
		AdminUserIDs:       splitIDs(v.GetStringSlice("ADMIN_USER_IDS")),
		EnableKudos:        v.GetBool("ENABLE_KUDOS"),
		EnableGoldStar:     v.GetBool("ENABLE_GOLDSTAR"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SlackBotToken == "" {
		errs = append(errs, errors.New("BOT_USER_OAUTH_TOKEN is required"))
	}
	if c.SlackSigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET is required"))
	}
	if c.SlackFieldLimit <= 0 || c.SlackMessageLimit <= 0 {
		errs = append(errs, errors.New("SLACK_FIELD_LIMIT and SLACK_MESSAGE_LIMIT must be positive"))
	}
	if c.SlackFieldLimit > MaxSectionLength {
		errs = append(errs, fmt.Errorf("SLACK_FIELD_LIMIT cannot exceed %d, Slack's section size", MaxSectionLength))
	}
	if c.SlackFieldLimit > c.SlackMessageLimit {
		errs = append(errs, errors.New("SLACK_FIELD_LIMIT cannot exceed SLACK_MESSAGE_LIMIT"))
	}
	if c.EnableGoldStar && c.PollChannelID == "" {
		errs = append(errs, errors.New("POLL_CHANNEL_ID is required when Gold Star is enabled"))
	}

	return errors.Join(errs...)
}

// splitIDs accepts both a YAML list and a comma separated env var.
func splitIDs(raw []string) []string {
	var ids []string
	for _, r := range raw {
		for _, id := range strings.Split(r, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
