// Package auth verifies storefront API keys. Keys are stored as
// HMAC-SHA256 hashes with a server-side pepper; the raw key never touches
// the database.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo describes a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides API key lookups.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey computes the hex HMAC-SHA256 of the raw key under the pepper.
func HashKey(rawKey string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify resolves a raw presented key to its stored record.
func Verify(ctx context.Context, repo Repository, rawKey string, pepper []byte) (*APIKeyInfo, error) {
	if rawKey == "" {
		return nil, ErrKeyNotFound
	}
	return repo.FindByHash(ctx, HashKey(rawKey, pepper))
}
