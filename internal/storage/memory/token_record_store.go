package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenRecordStore is an in-memory implementation of storage.TokenRecordStore.
type TokenRecordStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.TokenRecord
}

// NewTokenRecordStore creates a new in-memory token record store.
func NewTokenRecordStore() *TokenRecordStore {
	return &TokenRecordStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)

// Insert appends a new token record.
func (s *TokenRecordStore) Insert(_ context.Context, r *domain.TokenRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	recordCopy := *r
	recordCopy.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &recordCopy)
	return nil
}

// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
func (s *TokenRecordStore) GetByMint(_ context.Context, mint string) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TokenRecord
	for _, r := range s.data {
		if r.Mint == mint {
			recordCopy := *r
			out = append(out, &recordCopy)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DiscoveredAt < out[j].DiscoveredAt
	})
	return out, nil
}
