package domain

// CandidateState tracks the lifecycle of a discovered candidate.
type CandidateState string

const (
	CandidateStateNew      CandidateState = "NEW"
	CandidateStateRejected CandidateState = "REJECTED"
	CandidateStatePromoted CandidateState = "PROMOTED"
)

// Candidate represents one social-signal-derived asset reference.
// A candidate is created on ingestion and reaches exactly one terminal
// state: REJECTED (risk gate) or PROMOTED (opened as a position).
type Candidate struct {
	Mint         string // token mint address (opaque contract identifier)
	Source       string // signal producer that surfaced the mint
	DiscoveredAt int64  // Unix timestamp in milliseconds
	RawScore     *int   // risk score, set once by the risk gate (nullable)
	State        CandidateState
}

// Terminal reports whether the candidate reached a terminal state.
func (c *Candidate) Terminal() bool {
	return c.State == CandidateStateRejected || c.State == CandidateStatePromoted
}
