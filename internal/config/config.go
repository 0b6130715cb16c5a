package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables that override settings,
// e.g. PHRASEBOT_DATABASE_DSN sets database.dsn.
const EnvPrefix = "PHRASEBOT_"

// Database contains connection settings.
type Database struct {
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// HTTP contains the review API listener settings.
type HTTP struct {
	Addr  string `koanf:"addr"`
	Token string `koanf:"token"`
}

// Telegram contains bot settings.
type Telegram struct {
	Enabled  bool    `koanf:"enabled"`
	Token    string  `koanf:"token"`
	AdminIDs []int64 `koanf:"admin_ids"`
	LockPath string  `koanf:"lock_path"`
}

// Scheduler contains reminder settings.
type Scheduler struct {
	Enabled     bool `koanf:"enabled"`
	StartHour   int  `koanf:"start_hour"`
	EndHour     int  `koanf:"end_hour"`
	DefaultHour int  `koanf:"default_hour"`
}

// Review contains review engine settings.
type Review struct {
	Timezone     string `koanf:"timezone"`
	DefaultLimit int    `koanf:"default_limit"`
}

// Log contains logger settings.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the application configuration.
type Config struct {
	Database  Database  `koanf:"database"`
	HTTP      HTTP      `koanf:"http"`
	Telegram  Telegram  `koanf:"telegram"`
	Scheduler Scheduler `koanf:"scheduler"`
	Review    Review    `koanf:"review"`
	Log       Log       `koanf:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{
			Driver:       "sqlite3",
			DSN:          "data/phrasebot.db",
			MaxOpenConns: 10,
		},
		HTTP: HTTP{
			Addr: "127.0.0.1:8080",
		},
		Telegram: Telegram{
			LockPath: "data/phrasebot-bot.lock",
		},
		Scheduler: Scheduler{
			Enabled:     true,
			StartHour:   8,
			EndHour:     22,
			DefaultHour: 9,
		},
		Review: Review{
			Timezone:     "Local",
			DefaultLimit: 20,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadOptions selects the sources layered over the defaults.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment; missing is fine.
	EnvFile string
	// Flags are applied last. Only flags the user set take effect.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to configuration keys.
	FlagKeys map[string]string
}

// Load builds the configuration from defaults, the YAML file, the dotenv
// file, PHRASEBOT_* variables and flags, in that order of precedence.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	k := koanf.New(".")

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", opts.ConfigFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	decoder := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			splitListHook(","),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", DecoderConfig: decoder}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The bot historically read its token from TELEGRAM_BOT_TOKEN.
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitListHook splits a delimited string for any slice target, so weak
// typing can convert each element (e.g. "11,22" into []int64).
func splitListHook(sep string) mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data interface{}) (interface{}, error) {
		if from != reflect.String || to != reflect.Slice {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

// envKey maps PHRASEBOT_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// Location resolves review.timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Review.Timezone)
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("review.timezone: %w", err)
	}
	return loc, nil
}

// IsAdmin reports whether the Telegram user may import phrase files.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
