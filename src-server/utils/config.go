package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	port         string
	databasePath string
	seedFile     string

	location *time.Location

	metricCollectionInterval time.Duration

	activityPurgeCron string
	reminderCron      string
	reminderLead      time.Duration

	discordAppToken  string
	discordChannelID string

	bookingWorkStart   int
	bookingWorkEnd     int
	bookingHorizonDays int
	bookingSlot        time.Duration
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),
		databasePath: func() string {
			path := os.Getenv("DATABASE_PATH")
			if path == "" {
				path = "./sqlite.db"
			}
			slog.Debug("env", "DATABASE_PATH", path)
			return filepath.Clean(path)
		}(),
		seedFile: func() string {
			seedFile := os.Getenv("SEED_FILE")
			if seedFile == "" {
				return ""
			}
			if _, err := os.Stat(seedFile); err != nil {
				slog.Error("can't get info of SEED_FILE", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SEED_FILE", seedFile)
			return seedFile
		}(),

		location: func() *time.Location {
			timezoneStr := os.Getenv("TIMEZONE")
			switch timezoneStr {
			case "", "UTC":
				slog.Warn("TIMEZONE is not set, using UTC", "timezone", time.UTC)
				return time.UTC
			}
			loc, err := time.LoadLocation(timezoneStr)
			if err != nil {
				slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "TIMEZONE", timezoneStr)
			return loc
		}(),

		metricCollectionInterval: envDuration("METRIC_COLLECTION_INTERVAL", 30*time.Second),

		activityPurgeCron: envCron("ACTIVITY_PURGE_CRON", "@daily"),
		reminderCron:      envCron("REMINDER_CRON", "@every 1m"),
		reminderLead:      envDuration("REMINDER_LEAD", 15*time.Minute),

		discordAppToken: func() string {
			discordAppToken := os.Getenv("DISCORD_APP_TOKEN")
			if discordAppToken == "" {
				slog.Warn("DISCORD_APP_TOKEN is not set, reminders go to the log")
				return ""
			}
			slog.Debug("env", "DISCORD_APP_TOKEN", discordAppToken[0:min(3, len(discordAppToken))]+"...")
			return discordAppToken
		}(),
		discordChannelID: func() string {
			discordChannelID := os.Getenv("DISCORD_CHANNEL_ID")
			slog.Debug("env", "DISCORD_CHANNEL_ID", discordChannelID)
			return discordChannelID
		}(),

		bookingWorkStart:   envInt("BOOKING_WORK_START", 9, 0, 23),
		bookingWorkEnd:     envInt("BOOKING_WORK_END", 17, 1, 24),
		bookingHorizonDays: envInt("BOOKING_HORIZON_DAYS", 6, 1, 60),
		bookingSlot:        time.Duration(envInt("BOOKING_SLOT_MINUTES", 60, 5, 24*60)) * time.Minute,
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		slog.Debug("env", key, fallback)
		return fallback
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		slog.Error("invalid "+key, "value", value, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", key, duration)
	return duration
}

func envInt(key string, fallback, lo, hi int) int {
	value := os.Getenv(key)
	if value == "" {
		slog.Debug("env", key, fallback)
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < lo || n > hi {
		slog.Error("invalid "+key, "value", value, "min", lo, "max", hi, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", key, n)
	return n
}

func envCron(key, fallback string) string {
	spec := os.Getenv(key)
	if spec == "" {
		spec = fallback
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		slog.Error("invalid "+key, "value", spec, "error", err)
		os.Exit(1)
	}
	slog.Debug("env", key, spec)
	return spec
}

// Get PORT env, default to 8080
func (c *Config) GetPort() string {
	return c.port
}

// Get DATABASE_PATH env, default to ./sqlite.db
func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// Get SEED_FILE env, blank when unset
func (c *Config) GetSeedFile() string {
	return c.seedFile
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// Get METRIC_COLLECTION_INTERVAL env
func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}

// Get ACTIVITY_PURGE_CRON env
func (c *Config) GetActivityPurgeCron() string {
	return c.activityPurgeCron
}

// Get REMINDER_CRON env
func (c *Config) GetReminderCron() string {
	return c.reminderCron
}

// Get REMINDER_LEAD env
func (c *Config) GetReminderLead() time.Duration {
	return c.reminderLead
}

// Get DISCORD_APP_TOKEN env
func (c *Config) GetDiscordAppToken() string {
	return c.discordAppToken
}

// Get DISCORD_CHANNEL_ID env
func (c *Config) GetDiscordChannelID() string {
	return c.discordChannelID
}

// Get BOOKING_WORK_START env
func (c *Config) GetBookingWorkStart() int {
	return c.bookingWorkStart
}

// Get BOOKING_WORK_END env
func (c *Config) GetBookingWorkEnd() int {
	return c.bookingWorkEnd
}

// Get BOOKING_HORIZON_DAYS env
func (c *Config) GetBookingHorizonDays() int {
	return c.bookingHorizonDays
}

// Get BOOKING_SLOT_MINUTES env as a duration
func (c *Config) GetBookingSlot() time.Duration {
	return c.bookingSlot
}
