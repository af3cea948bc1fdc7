package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/campus-gateway/internal/candidate"
	"github.com/angeloszaimis/campus-gateway/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// EnvFile is loaded into the process environment before the config is read,
// when it exists in the working directory.
const EnvFile = ".env"

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type APIConfig struct {
	Candidates      []string `mapstructure:"candidates"`
	FallbackURL     string   `mapstructure:"fallback_url"`
	ProbePath       string   `mapstructure:"probe_path"`
	ProbeTimeout    string   `mapstructure:"probe_timeout"`
	ProbeStrategy   string   `mapstructure:"probe_strategy"`
	RequestTimeout  string   `mapstructure:"request_timeout"`
	NotFoundIsStale bool     `mapstructure:"not_found_is_stale"`
}

type HealthConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	Cooldown         string `mapstructure:"cooldown"`
	MonitorInterval  string `mapstructure:"monitor_interval"`
}

type GatewayConfig struct {
	Address string `mapstructure:"address"`
}

type TokensConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Environment string        `mapstructure:"environment"`
	Logging     LoggingConfig `mapstructure:"logging"`
	API         APIConfig     `mapstructure:"api"`
	Health      HealthConfig  `mapstructure:"health"`
	Gateway     GatewayConfig `mapstructure:"gateway"`
	Tokens      TokensConfig  `mapstructure:"tokens"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDev)
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetDefault("api.candidates", []string{"http://localhost:8000/api", "http://127.0.0.1:8000/api"})
	v.SetDefault("api.fallback_url", "http://localhost:8000/api")
	v.SetDefault("api.probe_path", "/health")
	v.SetDefault("api.probe_timeout", "2s")
	v.SetDefault("api.probe_strategy", strategy.Sequential)
	v.SetDefault("api.request_timeout", "15s")
	v.SetDefault("api.not_found_is_stale", true)

	v.SetDefault("health.failure_threshold", 3)
	v.SetDefault("health.cooldown", "30s")
	v.SetDefault("health.monitor_interval", "0s")

	v.SetDefault("gateway.address", ":8080")
	v.SetDefault("tokens.path", "")
	v.SetDefault("metrics.buffer_size", 1000)
}

// Load reads config.yaml from ./config or the working directory, overlays
// environment variables (API_PROBE_TIMEOUT for api.probe_timeout and so on)
// and validates the result. A comma separated API_CANDIDATES replaces the
// candidate list.
func Load() (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to read env file", slog.String("error", err.Error()))
			return nil, err
		}
	} else {
		slog.Info("loaded env file", slog.String("file", EnvFile))
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.API,
			validation.By(func(value interface{}) error {
				ac, ok := value.(APIConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an APIConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Candidates,
						validation.Required,
						validation.Each(validation.By(candidate.ValidateURL)),
					),
					validation.Field(&ac.FallbackURL,
						validation.When(ac.FallbackURL != "", validation.By(candidate.ValidateURL)),
					),
					validation.Field(&ac.ProbePath,
						validation.Required,
						validation.By(validatePath),
					),
					validation.Field(&ac.ProbeTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&ac.ProbeStrategy,
						validation.Required,
						validation.In(strategy.Sequential, strategy.Race),
					),
					validation.Field(&ac.RequestTimeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
				)
			}),
		),
		validation.Field(&c.Health,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&hc.Cooldown,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.MonitorInterval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Gateway,
			validation.By(func(value interface{}) error {
				gc, ok := value.(GatewayConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a GatewayConfig")
				}
				return validation.ValidateStruct(&gc,
					validation.Field(&gc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
}

// ProbeTimeout, RequestTimeout, Cooldown and MonitorInterval assume a
// validated config.

func (c *Config) ProbeTimeout() time.Duration {
	return mustDuration(c.API.ProbeTimeout)
}

func (c *Config) RequestTimeout() time.Duration {
	return mustDuration(c.API.RequestTimeout)
}

func (c *Config) Cooldown() time.Duration {
	return mustDuration(c.Health.Cooldown)
}

// MonitorInterval of zero disables background monitoring.
func (c *Config) MonitorInterval() time.Duration {
	return mustDuration(c.Health.MonitorInterval)
}

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	if mustDuration(value.(string)) == 0 {
		return validation.NewError("validation_zero_duration", "must be greater than zero")
	}
	return nil
}

func validatePath(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_invalid_path", "must start with /")
	}
	return nil
}
