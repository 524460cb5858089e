// Package config loads process configuration from defaults, command-line
// flags, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Addr      string `env:"ADDR" validate:"hostname_port"`
	DBPath    string `env:"DB_PATH" validate:"required"`
	LogLevel  string `env:"LOG_LEVEL" validate:"loglevel"`
	LogFile   string `env:"LOG_FILE"`
	AdminUser string `env:"ADMIN_USER" validate:"required"`
	// AdminEmail receives the admin account's expiry alerts.
	AdminEmail string `env:"ADMIN_EMAIL" validate:"omitempty,email"`

	NotifyEnabled         bool          `env:"NOTIFY_ENABLED"`
	NotifyWindowDays      int           `env:"NOTIFY_WINDOW_DAYS" validate:"gt=0"`
	NotifyInterval        time.Duration `env:"NOTIFY_INTERVAL" validate:"gt=0"`
	NotifySendTimeout     time.Duration `env:"NOTIFY_SEND_TIMEOUT" validate:"gt=0"`
	// NotifyExpiredLookback of zero reports expired items however old they are.
	NotifyExpiredLookback time.Duration `env:"NOTIFY_EXPIRED_LOOKBACK"`

	Notifier     string `env:"NOTIFIER" validate:"oneof=smtp webhook log"`
	SMTPHost     string `env:"SMTP_HOST" validate:"required_if=Notifier smtp"`
	SMTPPort     int    `env:"SMTP_PORT" validate:"gte=0,lte=65535"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" validate:"required_if=Notifier smtp"`
	WebhookURL   string `env:"WEBHOOK_URL" validate:"required_if=Notifier webhook"`

	// RedisAddr enables the shared pass lock when set.
	RedisAddr    string        `env:"REDIS_ADDR"`
	RedisLockTTL time.Duration `env:"REDIS_LOCK_TTL" validate:"gt=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:                  ":8080",
		DBPath:                "freshtrack.sqlite3",
		LogLevel:              "info",
		AdminUser:             "Admin",
		NotifyEnabled:         true,
		NotifyWindowDays:      3,
		NotifyInterval:        time.Hour,
		NotifySendTimeout:     30 * time.Second,
		Notifier:              "log",
		SMTPPort:              587,
		RedisLockTTL:          10 * time.Minute,
	}
}

const usage = `Usage: freshtrack [flags]

Flags:
  -d, -db <path>          SQLite database path (default: freshtrack.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -log-level <level>      debug, info, warn or error (default: info)
  -notifier <kind>        smtp, webhook or log (default: log)
  -h, -help               show this help and exit

Every setting can also be given in the environment or a .env file,
which take precedence over flags.
`

// Load builds the configuration from args (without the program name), a .env
// file in the working directory, and the environment. It returns
// flag.ErrHelp when help was requested.
func Load(args []string) (*Config, error) {
	cfg := Default()

	flags := flag.NewFlagSet("freshtrack", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }

	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	flags.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	flags.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	flags.StringVar(&cfg.AdminUser, "user", cfg.AdminUser, "")
	flags.StringVar(&cfg.AdminUser, "u", cfg.AdminUser, "")
	flags.StringVar(&cfg.LogFile, "log", cfg.LogFile, "")
	flags.StringVar(&cfg.LogFile, "l", cfg.LogFile, "")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "")
	flags.StringVar(&cfg.Notifier, "notifier", cfg.Notifier, "")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// Unset variables leave the flag or default value in place.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := logLevels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, ok := logLevels[fl.Field().String()]
	return ok
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	return v.Struct(cfg)
}

