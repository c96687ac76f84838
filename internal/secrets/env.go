package secrets

import (
	"context"
	"os"
)

// EnvProvider reads secrets from process environment variables.
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (*EnvProvider) Name() string { return "env" }

func (*EnvProvider) Lookup(_ context.Context, key string) (string, bool, error) {
	value, ok := os.LookupEnv(key)
	return value, ok && value != "", nil
}
