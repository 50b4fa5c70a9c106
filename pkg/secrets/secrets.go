// Package secrets resolves sensitive configuration values from an external
// secret store. The env provider is the default and reads process variables.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrSecretNotFound is returned when the store has no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// ProviderType selects the backing secret store.
type ProviderType string

const (
	ProviderEnv   ProviderType = "env"
	ProviderAWS   ProviderType = "aws"
	ProviderVault ProviderType = "vault"
	ProviderGCP   ProviderType = "gcp"
)

// Config describes how to reach the secret store.
type Config struct {
	Provider ProviderType

	// AWS Secrets Manager: one JSON object secret holding every key.
	AWSRegion   string
	AWSSecretID string

	// HashiCorp Vault KV v2.
	VaultAddress   string
	VaultToken     string
	VaultMountPath string
	VaultPath      string

	// GCP Secret Manager: one secret per key, named <prefix><key-in-kebab-case>.
	GCPProjectID string
	GCPPrefix    string
}

// Provider returns secret values by configuration key (e.g. "DB_PASSWORD").
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Close() error
}

// NewProvider builds the provider named in cfg.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderEnv, "":
		return EnvProvider{}, nil
	case ProviderAWS:
		return NewAWSProvider(ctx, cfg)
	case ProviderVault:
		return NewVaultProvider(cfg)
	case ProviderGCP:
		return NewGCPProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
}

// IsNotFound reports whether err means the key is absent from the store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct{}

func (EnvProvider) Get(_ context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
}

func (EnvProvider) Close() error { return nil }
