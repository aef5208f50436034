// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-sniper/internal/domain"
)

// ComputeOrderKey computes a deterministic idempotency key using SHA256.
// Formula: SHA256(mint|direction|attempt)
// Returns hex-encoded hash (64 characters). The attempt counter is
// monotonic per logical order, so a re-trigger of the same position
// produces a distinct key while retries of one attempt share it.
func ComputeOrderKey(mint string, direction domain.Direction, attempt uint64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, string(direction), attempt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
