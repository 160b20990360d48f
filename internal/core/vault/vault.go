// Package vault defines how configured secret references are resolved.
package vault

import (
	"context"
	"strings"
)

// Type represents the type of vault.
type Type string

const (
	// TypeDotEnv resolves dotenv:// references from the environment and .env files.
	TypeDotEnv Type = "dotenv"
)

// Vault resolves secret references to their values.
type Vault interface {
	// GetSecret resolves uri (for example "dotenv://CHAT_API_KEY").
	GetSecret(ctx context.Context, uri string) (string, error)

	// Ping checks if the vault is reachable.
	Ping(ctx context.Context) error

	// Close releases vault resources.
	Close() error
}

// IsReference reports whether value is a vault URI rather than a literal.
func IsReference(value string) bool {
	return strings.Contains(value, "://")
}

// Resolve returns value unchanged unless it is a vault reference,
// in which case the secret is looked up in v.
func Resolve(ctx context.Context, v Vault, value string) (string, error) {
	if value == "" || !IsReference(value) || v == nil {
		return value, nil
	}
	return v.GetSecret(ctx, value)
}
