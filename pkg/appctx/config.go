// Package appctx carries process-wide state on the cobra command context.
package appctx

import (
	"context"
	"errors"

	"github.com/songledger/songledger/pkg/config"
)

type key string

const configKey key = "songledger.config.manager"

// ErrNoConfig is returned by Settings when the root command has not loaded
// configuration onto the context.
var ErrNoConfig = errors.New("configuration not loaded")

// WithConfig stores the loaded config manager on ctx.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the config manager from ctx.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// Settings returns a snapshot of the loaded configuration.
func Settings(ctx context.Context) (config.Config, error) {
	mgr, ok := Config(ctx)
	if !ok {
		return config.Config{}, ErrNoConfig
	}
	return mgr.Get(), nil
}
