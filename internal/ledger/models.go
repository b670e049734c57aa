package ledger

import "time"

// Phase is one step in a batch transfer's recorded lifecycle. For a given
// (run, batch) pair, phases are append-only and monotonically ordered
// started → file_copied* → verified → completed, or terminate early at failed.
type Phase string

const (
	PhaseStarted    Phase = "started"
	PhaseFileCopied Phase = "file_copied"
	PhaseVerified   Phase = "verified"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further phase may follow.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Transition is one durable ledger row.
type Transition struct {
	ID           int64
	RunID        string
	BatchID      string
	Seq          int64
	Phase        Phase
	RelativePath string
	Reason       string
	ManifestJSON string
	CreatedAt    time.Time
}

// Pending identifies an interrupted transfer: a (run, batch) pair whose last
// recorded phase is started or file_copied, with no terminal record.
type Pending struct {
	RunID   string
	BatchID string
}

// Stats aggregates ledger contents for status reporting.
type Stats struct {
	Runs         int64
	Batches      int64
	Completed    int64
	Failed       int64
	Pending      int64
	BytesCopied  int64
	LastActivity time.Time
}

var allowedTransitions = map[Phase]map[Phase]struct{}{
	PhaseStarted:    {PhaseFileCopied: {}, PhaseVerified: {}, PhaseFailed: {}},
	PhaseFileCopied: {PhaseFileCopied: {}, PhaseVerified: {}, PhaseFailed: {}},
	PhaseVerified:   {PhaseCompleted: {}, PhaseFailed: {}},
}

func transitionAllowed(from, to Phase) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
