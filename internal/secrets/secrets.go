// Package secrets resolves credentials from an ordered list of providers.
package secrets

import (
	"context"
	"log/slog"
)

// Provider looks up a single secret. ok is false when the provider has no
// value for key; err is reserved for failures talking to the backing store.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, key string) (value string, ok bool, err error)
}

// Chain tries its providers in order and returns the first non-empty value.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Lookup never fails: a provider error is logged and the next provider is
// tried.
func (c *Chain) Lookup(ctx context.Context, key string) (string, bool) {
	for _, p := range c.providers {
		value, ok, err := p.Lookup(ctx, key)
		if err != nil {
			c.logger.Error("secret provider failed", "provider", p.Name(), "key", key, "error", err)
			continue
		}
		if ok && value != "" {
			c.logger.Debug("secret resolved", "provider", p.Name(), "key", key)
			return value, true
		}
	}
	return "", false
}

// Providers reports the provider names in lookup order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}
