package executor

import (
	"sync"

	"solana-sniper/internal/domain"
)

// attemptState tracks what is known about one idempotency key. A
// broadcast signature is recorded before the send, so an ambiguous
// outcome can always be reconciled on chain later.
type attemptState struct {
	mu          sync.Mutex
	txSignature string              // last broadcast signature, empty if never sent
	quotedPrice float64             // price quoted for the broadcast transaction
	result      *domain.OrderResult // cached terminal result
}

// ledger serializes submissions per idempotency key and remembers
// terminal outcomes. At most one economically-effective fill can exist
// per key: concurrent submissions for the same key queue on the key's
// lock, and later ones observe the cached result.
type ledger struct {
	mu   sync.Mutex
	keys map[string]*attemptState
}

func newLedger() *ledger {
	return &ledger{keys: make(map[string]*attemptState)}
}

// acquire returns the state for a key, creating it if needed. The
// caller must hold st.mu while working with the key.
func (l *ledger) acquire(key string) *attemptState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.keys[key]
	if !ok {
		st = &attemptState{}
		l.keys[key] = st
	}
	return st
}
