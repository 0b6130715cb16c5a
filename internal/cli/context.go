package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/example/phrasebot/internal/config"
	"github.com/example/phrasebot/internal/database"
	"github.com/example/phrasebot/internal/logging"
	"github.com/example/phrasebot/internal/spaced_repetition"
)

type commandContext struct {
	configFile string
	envFile    string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	db *sqlx.DB
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(config.LoadOptions{
			ConfigFile: c.configFile,
			EnvFile:    c.envFile,
			Flags:      cmd.Flags(),
			FlagKeys:   flagKeys,
		})
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
}

// store opens the configured database once per command run.
func (c *commandContext) store(ctx context.Context, cmd *cobra.Command) (*database.Store, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	if c.db == nil {
		db, err := database.Connect(ctx, database.Options{
			Driver:       cfg.Database.Driver,
			DSN:          cfg.Database.DSN,
			MaxOpenConns: cfg.Database.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		c.db = db
	}
	return database.NewStore(c.db), nil
}

func (c *commandContext) service(cmd *cobra.Command, store *database.Store, logger *slog.Logger) (*spaced_repetition.Service, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return spaced_repetition.NewService(store,
		spaced_repetition.WithLocation(loc),
		spaced_repetition.WithLogger(logger),
	), nil
}

// engine is the common setup of the commands that call the review engine.
func (c *commandContext) engine(cmd *cobra.Command) (*database.Store, *spaced_repetition.Service, error) {
	logger, err := c.logger(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := c.store(cmd.Context(), cmd)
	if err != nil {
		return nil, nil, err
	}
	svc, err := c.service(cmd, store, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, svc, nil
}

func (c *commandContext) close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
