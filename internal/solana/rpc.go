package solana

import "context"

// RPCClient defines the Solana RPC surface the pipeline needs: transaction
// broadcast plus signature-status lookup for reconciling ambiguous sends.
type RPCClient interface {
	// SendTransaction broadcasts a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)

	// GetSignatureStatus retrieves the processing status of a signature.
	// Returns nil if the chain has no record of it.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}

// SignatureStatus describes a transaction's confirmation state.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int64
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// Confirmed reports whether the transaction settled without error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// Failed reports whether the transaction settled with an error.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}
