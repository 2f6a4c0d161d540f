package manager

// State is the lifecycle state of the generation session.
type State string

const (
	StateIdle          State = "idle"
	StateAutoLoading   State = "autoloading"
	StateAwaitingModel State = "awaiting_model"
	StateStreaming     State = "streaming"
	StateFinalizing    State = "finalizing"
)

// Outcome classifies how a generation ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeAborted    Outcome = "aborted"
	OutcomeFailed     Outcome = "failed"
	OutcomeNotStarted Outcome = "not_started"
)

// Result is what a finished generation wrote into its chat entry.
type Result struct {
	ChatID  int64
	EntryID int64
	Text    string
	Outcome Outcome
}

// Snapshot is a read-only projection of the controller state.
type Snapshot struct {
	State         State
	NowGenerating bool
	ChatID        int64
	EntryID       int64
	Err           string
}
