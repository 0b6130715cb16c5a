package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateReview(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported value %q (want sqlite3, sqlite or postgres)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.New("database.max_open_conns must not be negative")
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token must be set when telegram.enabled is true (or set TELEGRAM_BOT_TOKEN)")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	for name, hour := range map[string]int{"start_hour": s.StartHour, "end_hour": s.EndHour, "default_hour": s.DefaultHour} {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("scheduler.%s must be between 0 and 23, got %d", name, hour)
		}
	}
	if s.StartHour > s.EndHour {
		return fmt.Errorf("scheduler.start_hour (%d) must not be after scheduler.end_hour (%d)", s.StartHour, s.EndHour)
	}
	return nil
}

func (c *Config) validateReview() error {
	if c.Review.DefaultLimit < 1 || c.Review.DefaultLimit > 100 {
		return fmt.Errorf("review.default_limit must be between 1 and 100, got %d", c.Review.DefaultLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unsupported value %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
	}
	return nil
}
