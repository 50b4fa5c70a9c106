package secrets

import (
	"context"
	"errors"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
)

// VaultProvider reads keys from one KV v2 secret in HashiCorp Vault.
type VaultProvider struct {
	kv   *vaultapi.KVv2
	path string
}

// NewVaultProvider connects to Vault with a static token.
func NewVaultProvider(cfg Config) (*VaultProvider, error) {
	vcfg := vaultapi.DefaultConfig()
	if cfg.VaultAddress != "" {
		vcfg.Address = cfg.VaultAddress
	}

	client, err := vaultapi.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}

	mount := cfg.VaultMountPath
	if mount == "" {
		mount = "secret"
	}

	return &VaultProvider{kv: client.KVv2(mount), path: cfg.VaultPath}, nil
}

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	secret, err := p.kv.Get(ctx, p.path)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to read vault secret %s: %w", p.path, err)
	}

	if v, ok := secret.Data[key].(string); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
}

func (p *VaultProvider) Close() error { return nil }
