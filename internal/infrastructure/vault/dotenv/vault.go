// Package dotenv provides a dotenv-backed vault for secret references.
package dotenv

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/unifiedui/community-gateway/internal/core/vault"
)

// Scheme is the URI scheme handled by this vault.
const Scheme = "dotenv://"

// Vault implements vault.Vault using environment variables,
// falling back to values read from secret files.
type Vault struct {
	secrets map[string]string
}

// NewVault creates a vault. Each file is parsed with godotenv;
// later files override earlier ones. Missing files are an error.
func NewVault(files ...string) (*Vault, error) {
	secrets := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", file, err)
		}
		for k, v := range values {
			secrets[k] = v
		}
	}
	return &Vault{secrets: secrets}, nil
}

// GetSecret resolves a dotenv://KEY reference.
func (v *Vault) GetSecret(ctx context.Context, uri string) (string, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", fmt.Errorf("unsupported secret reference: %s", uri)
	}
	key := strings.TrimPrefix(uri, Scheme)

	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	if value, ok := v.secrets[key]; ok && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// Ping always succeeds.
func (v *Vault) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (v *Vault) Close() error {
	return nil
}

var _ vault.Vault = (*Vault)(nil)
