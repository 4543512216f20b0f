// Package config loads application configuration from environment
// variables, with an optional .env file for development.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`

	HTTP struct {
		Addr  string `validate:"required"`
		Token string
	}

	// Storage selects the task store: "pg" or "sqlite".
	Storage struct {
		Driver     string `validate:"required,oneof=pg sqlite"`
		DSN        string
		SQLitePath string
		Migrations string
	}

	Redis struct {
		Addr     string `validate:"required"`
		Password string
		DB       int
	}

	Queue struct {
		Name        string `validate:"required"`
		Concurrency int    `validate:"min=1"`
		MaxRetry    int    `validate:"min=0"`
	}

	// Notifier selects the delivery channel: "telegram" or "messagebird".
	Notifier struct {
		Channel string `validate:"required,oneof=telegram messagebird"`
	}

	Telegram struct {
		Token      string
		AllowedIDs string
		Workers    int `validate:"min=1"`
	}

	MessageBird struct {
		AccessKey  string
		Originator string
	}

	Task struct {
		// UnboundedCap bounds the occurrence count of open-ended schedules.
		UnboundedCap int `validate:"min=1"`
	}

	Resync struct {
		// Schedule is a cron expression for the job-loss sweep.
		Schedule string `validate:"required"`
		Timeout  time.Duration
	}

	Workers struct {
		PoolSize    int           `validate:"min=1"`
		SendTimeout time.Duration `validate:"required"`
	}

	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")

	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.HTTP.Token = os.Getenv("HTTP_API_TOKEN")

	c.Storage.Driver = getenv("STORAGE_DRIVER", "pg")
	c.Storage.DSN = os.Getenv("DATABASE_DSN")
	c.Storage.SQLitePath = getenv("SQLITE_PATH", "data/remindbot.sqlite")
	c.Storage.Migrations = getenv("MIGRATIONS_PATH", "file://migrations/"+c.Storage.Driver)

	c.Redis.Addr = getenv("REDIS_ADDR", "localhost:6379")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = getenvInt("REDIS_DB", 0)

	c.Queue.Name = getenv("QUEUE_NAME", "reminders")
	c.Queue.Concurrency = getenvInt("QUEUE_CONCURRENCY", 8)
	c.Queue.MaxRetry = getenvInt("QUEUE_MAX_RETRY", 3)

	c.Notifier.Channel = getenv("NOTIFIER_CHANNEL", "telegram")

	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.AllowedIDs = os.Getenv("TELEGRAM_ALLOWED_IDS")
	c.Telegram.Workers = getenvInt("TELEGRAM_WORKERS", 4)

	c.MessageBird.AccessKey = os.Getenv("MESSAGEBIRD_ACCESS_KEY")
	c.MessageBird.Originator = getenv("MESSAGEBIRD_ORIGINATOR", "remindbot")

	c.Task.UnboundedCap = getenvInt("TASK_UNBOUNDED_CAP", 365)

	c.Resync.Schedule = getenv("RESYNC_SCHEDULE", "@every 10m")
	c.Resync.Timeout = getenvDuration("RESYNC_TIMEOUT", 2*time.Minute)

	c.Workers.PoolSize = getenvInt("WORKER_POOL_SIZE", 16)
	c.Workers.SendTimeout = getenvDuration("SEND_TIMEOUT", 30*time.Second)

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/remindbot.log")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if c.Storage.Driver == "pg" && c.Storage.DSN == "" {
		return Config{}, errors.New("DATABASE_DSN required when STORAGE_DRIVER=pg")
	}
	if c.Notifier.Channel == "telegram" && c.Telegram.Token == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN required when NOTIFIER_CHANNEL=telegram")
	}
	if c.Notifier.Channel == "messagebird" && c.MessageBird.AccessKey == "" {
		return Config{}, errors.New("MESSAGEBIRD_ACCESS_KEY required when NOTIFIER_CHANNEL=messagebird")
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
