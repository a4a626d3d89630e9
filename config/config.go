package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/tollgate/database"
	tollgatehttp "github.com/sagarc03/tollgate/http"
	"github.com/sagarc03/tollgate/keybackend"
	"github.com/sagarc03/tollgate/session"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for tollgate.
type Config struct {
	Server   ServerConfig             `mapstructure:"server"`
	Session  SessionConfig            `mapstructure:"session"`
	Storage  tollgatehttp.GrantConfig `mapstructure:"storage"`
	Auth     AuthConfig               `mapstructure:"auth"`
	Database DatabaseConfig           `mapstructure:"database"`
	CORS     tollgatehttp.CORSConfig  `mapstructure:"cors"`
	Log      LogConfig                `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig holds session token and cookie configuration.
type SessionConfig struct {
	KeyFile     string        `mapstructure:"key_file" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=1m"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"min=0s,ltefield=Timeout"`
	Providers   []string      `mapstructure:"providers" validate:"required,min=1,dive,required"`

	tollgatehttp.CookieConfig `mapstructure:",squash"`
}

// AuthConfig holds the credentials grants are signed with and the keys
// presigned URLs are verified against.
type AuthConfig struct {
	Credentials keybackend.CredentialsConfig `mapstructure:"credentials"`

	// Verify enables GET /auth/verify against Keys.
	Verify bool                  `mapstructure:"verify"`
	Keys   keybackend.KeysConfig `mapstructure:"keys"`

	// Identity enables POST /auth/login/{provider} behind an
	// authenticating proxy when UserHeader is set.
	Identity tollgatehttp.IdentityHeaderConfig `mapstructure:"identity"`
}

// DatabaseConfig selects the profile store. Sessions work without one.
type DatabaseConfig struct {
	Enabled bool `mapstructure:"enabled"`

	database.Config `mapstructure:",squash"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Env   string `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":   "database.type",
	"db-dsn":    "database.dsn",
	"key-file":  "session.key_file",
	"port":      "server.port",
	"host":      "server.host",
	"bucket":    "storage.bucket",
	"endpoint":  "storage.endpoint",
	"region":    "storage.region",
	"log-level": "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Keys only
// reachable through the environment need a default so Unmarshal sees them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5780)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("session.key_file", "session.pem")
	v.SetDefault("session.timeout", session.DefaultTimeout.String())
	v.SetDefault("session.grace_period", session.DefaultGracePeriod.String())
	v.SetDefault("session.providers", session.DefaultProviders)
	v.SetDefault("session.cookie_name", tollgatehttp.DefaultCookieName)
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.secure", false)

	v.SetDefault("storage.bucket", "tollgate")
	v.SetDefault("storage.endpoint", "http://localhost:9000/tollgate")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.service", "s3")
	v.SetDefault("storage.upload_prefix", "uploads")
	v.SetDefault("storage.upload_expires", "2h")
	v.SetDefault("storage.download_expires", "15m")
	v.SetDefault("storage.max_upload_size", 0) // 0 means no limit

	v.SetDefault("auth.credentials.source", keybackend.SourceStatic)
	v.SetDefault("auth.credentials.access_key", "")
	v.SetDefault("auth.credentials.secret_key", "")
	v.SetDefault("auth.credentials.session_token", "")
	v.SetDefault("auth.credentials.profile", "")
	v.SetDefault("auth.verify", false)
	v.SetDefault("auth.keys.file", "")
	v.SetDefault("auth.identity.user_header", "")
	v.SetDefault("auth.identity.name_header", "")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "tollgate.db")
	v.SetDefault("database.tables.profiles", "tollgate_profiles")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("TOLLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if c.Database.Enabled {
		if err := c.Database.Tables.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	if c.Auth.Credentials.Source == keybackend.SourceStatic || c.Auth.Credentials.Source == "" {
		if (c.Auth.Credentials.AccessKey == "") != (c.Auth.Credentials.SecretKey == "") {
			return errors.New("validate config: auth.credentials needs both access_key and secret_key")
		}
	}

	return nil
}
