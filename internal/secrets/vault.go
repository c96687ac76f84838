package secrets

import (
	"context"
	"errors"
	"fmt"
	"path"

	vault "github.com/hashicorp/vault/api"
)

// ErrAmbiguousSecret is returned when a secret has several candidate fields.
var ErrAmbiguousSecret = errors.New("ambiguous vault secret")

type VaultConfig struct {
	Address string
	Token   string
	// Mount is the KV secrets engine mount, "secret" by default.
	Mount string
}

// VaultProvider reads secrets from a HashiCorp Vault KV engine. Both the v2
// (<mount>/data/<key>) and v1 (<mount>/<key>) layouts are supported.
type VaultProvider struct {
	client *vault.Client
	mount  string
}

func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	vcfg := vault.DefaultConfig()
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}

	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	return &VaultProvider{client: client, mount: mount}, nil
}

func (*VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Lookup(ctx context.Context, key string) (string, bool, error) {
	secret, err := p.client.Logical().ReadWithContext(ctx, path.Join(p.mount, "data", key))
	if err != nil {
		return "", false, fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil {
		// Not a KV v2 mount, or no such key; try the v1 layout.
		secret, err = p.client.Logical().ReadWithContext(ctx, path.Join(p.mount, key))
		if err != nil {
			return "", false, fmt.Errorf("failed to read secret from vault: %w", err)
		}
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	return pickField(data, key)
}

// pickField selects the credential from a secret's fields: a field named after
// the key, then "api_key", then "value". Failing those, a secret holding a
// single string field yields that field.
func pickField(data map[string]interface{}, key string) (string, bool, error) {
	for _, name := range []string{key, "api_key", "value"} {
		if s, ok := data[name].(string); ok && s != "" {
			return s, true, nil
		}
	}

	var (
		only  string
		count int
	)
	for _, v := range data {
		if s, ok := v.(string); ok && s != "" {
			only = s
			count++
		}
	}
	switch count {
	case 0:
		return "", false, nil
	case 1:
		return only, true, nil
	default:
		return "", false, fmt.Errorf("%w: %d string fields and none named %q, api_key or value", ErrAmbiguousSecret, count, key)
	}
}
