package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/example/phrasebot/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := config.Default()
	if cfg.Database != want.Database {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Review.DefaultLimit != 20 {
		t.Fatalf("expected default limit 20, got %d", cfg.Review.DefaultLimit)
	}
	if cfg.Telegram.Enabled {
		t.Fatal("expected telegram disabled by default")
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "phrasebot.yaml")
	yaml := `
database:
  driver: postgres
  dsn: postgres://file@localhost/phrasebot
http:
  addr: ":9000"
review:
  timezone: Europe/Berlin
  default_limit: 30
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PHRASEBOT_HTTP_TOKEN=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PHRASEBOT_DATABASE_DSN", "postgres://env@localhost/phrasebot")
	t.Setenv("PHRASEBOT_DATABASE_MAX_OPEN_CONNS", "4")
	t.Setenv("PHRASEBOT_TELEGRAM_ADMIN_IDS", "11,22")
	// godotenv sets variables for the process; make sure the test cleans it up.
	t.Setenv("PHRASEBOT_HTTP_TOKEN", "")
	os.Unsetenv("PHRASEBOT_HTTP_TOKEN")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 20, "")
	flags.String("addr", "", "")
	if err := flags.Parse([]string{"--limit", "50"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: cfgPath,
		EnvFile:    envPath,
		Flags:      flags,
		FlagKeys:   map[string]string{"limit": "review.default_limit", "addr": "http.addr"},
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected driver from file, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://env@localhost/phrasebot" {
		t.Fatalf("expected env to override file dsn, got %q", cfg.Database.DSN)
	}
	if cfg.Database.MaxOpenConns != 4 {
		t.Fatalf("expected max open conns 4, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("unset flag must not override file addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.Token != "from-dotenv" {
		t.Fatalf("expected token from .env, got %q", cfg.HTTP.Token)
	}
	if cfg.Review.DefaultLimit != 50 {
		t.Fatalf("expected flag to override limit, got %d", cfg.Review.DefaultLimit)
	}
	if len(cfg.Telegram.AdminIDs) != 2 || !cfg.IsAdmin(22) || cfg.IsAdmin(33) {
		t.Fatalf("unexpected admin ids: %v", cfg.Telegram.AdminIDs)
	}
	// Untouched sections keep their defaults.
	if cfg.Scheduler != config.Default().Scheduler {
		t.Fatalf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
}

func TestLoadFallsBackToTelegramBotToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PHRASEBOT_TELEGRAM_ENABLED", "true")

	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || !cfg.Telegram.Enabled {
		t.Fatalf("unexpected telegram config: %+v", cfg.Telegram)
	}
}

func TestLoadAdminIDs(t *testing.T) {
	t.Run("env list", func(t *testing.T) {
		t.Setenv("PHRASEBOT_TELEGRAM_ADMIN_IDS", " 11, 22 ,")

		cfg, err := config.Load(config.LoadOptions{})
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if len(cfg.Telegram.AdminIDs) != 2 || cfg.Telegram.AdminIDs[0] != 11 || cfg.Telegram.AdminIDs[1] != 22 {
			t.Fatalf("unexpected admin ids: %v", cfg.Telegram.AdminIDs)
		}
	})

	t.Run("yaml list", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "phrasebot.yaml")
		if err := os.WriteFile(cfgPath, []byte("telegram:\n  admin_ids: [7, 8, 9]\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgPath})
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if len(cfg.Telegram.AdminIDs) != 3 || !cfg.IsAdmin(9) {
			t.Fatalf("unexpected admin ids: %v", cfg.Telegram.AdminIDs)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Setenv("PHRASEBOT_TELEGRAM_ADMIN_IDS", "11,abc")

		if _, err := config.Load(config.LoadOptions{}); err == nil {
			t.Fatal("expected error for non-numeric admin id")
		}
	})
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.Load(config.LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"empty dsn", func(c *config.Config) { c.Database.DSN = " " }, "database.dsn"},
		{"bot without token", func(c *config.Config) { c.Telegram.Enabled = true }, "telegram.token"},
		{"hour out of range", func(c *config.Config) { c.Scheduler.DefaultHour = 24 }, "scheduler.default_hour"},
		{"inverted window", func(c *config.Config) { c.Scheduler.StartHour, c.Scheduler.EndHour = 20, 6 }, "start_hour"},
		{"limit too large", func(c *config.Config) { c.Review.DefaultLimit = 101 }, "review.default_limit"},
		{"limit zero", func(c *config.Config) { c.Review.DefaultLimit = 0 }, "review.default_limit"},
		{"bad timezone", func(c *config.Config) { c.Review.Timezone = "Mars/Olympus" }, "review.timezone"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := config.Default()
	loc, err := cfg.Location()
	if err != nil || loc == nil {
		t.Fatalf("expected local zone, got %v, %v", loc, err)
	}

	cfg.Review.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %s", loc)
	}
}
