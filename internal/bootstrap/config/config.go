package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app" yaml:"app"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Media      MediaConfig      `mapstructure:"media" yaml:"media"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Intake     IntakeConfig     `mapstructure:"intake" yaml:"intake"`
	Zones      ZonesConfig      `mapstructure:"zones" yaml:"zones"`
	Events     EventsConfig     `mapstructure:"events" yaml:"events"`
	Console    ConsoleConfig    `mapstructure:"console" yaml:"console"`
}

type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Env  string `mapstructure:"env" yaml:"env"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	PublicBaseURL   string        `mapstructure:"public_base_url" yaml:"public_base_url"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type MediaConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type ClassifierConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Addr is where serve-classifier listens.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type IntakeConfig struct {
	StrictAreas    bool          `mapstructure:"strict_areas" yaml:"strict_areas"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl" yaml:"idempotency_ttl"`
}

type ZonesConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url" yaml:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

type ConsoleConfig struct {
	RejectUndoWindow time.Duration `mapstructure:"reject_undo_window" yaml:"reject_undo_window"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CIVIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("classifier", cfg.Classifier.BaseURL),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Media.Dir) == "" {
		return errors.New("media.dir is required")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	for key, raw := range map[string]string{
		"http.public_base_url": c.HTTP.PublicBaseURL,
		"classifier.base_url":  c.Classifier.BaseURL,
	} {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute url, got %q", key, raw)
		}
	}
	if c.Console.RejectUndoWindow <= 0 {
		return errors.New("console.reject_undo_window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "civicdesk")
	v.SetDefault("app.env", "local")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/civicdesk.sqlite")
	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.public_base_url", "http://localhost:5000")
	v.SetDefault("http.max_upload_bytes", 32<<20)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "90s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("media.dir", "uploads")
	v.SetDefault("classifier.base_url", "http://127.0.0.1:8000")
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.addr", ":8000")
	v.SetDefault("intake.strict_areas", false)
	v.SetDefault("intake.idempotency_ttl", "24h")
	v.SetDefault("zones.file", "")
	v.SetDefault("zones.watch", true)
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "grievances")
	v.SetDefault("console.reject_undo_window", "5s")
	v.SetDefault("console.refresh_interval", "5s")
}
