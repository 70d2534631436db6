// Package commands implements the contractrag CLI actions.
package commands

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/contractrag/internal/config"
	"github.com/0xcro3dile/contractrag/internal/infrastructure/container"
	"github.com/0xcro3dile/contractrag/internal/logger"
)

// AppContext holds what every command needs.
type AppContext struct {
	Config    *config.Config
	Container *container.Container
}

// NewAppContext loads configuration, installs the logger and wires the container.
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	cont, err := container.New(ctx, cfg, container.WithLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}

	return &AppContext{Config: cfg, Container: cont}, nil
}

// Close releases the container.
func (ac *AppContext) Close() {
	if ac.Container != nil {
		if err := ac.Container.Close(); err != nil {
			ac.Container.Logger.Warn("closing container", "error", err)
		}
	}
}
