package models

// Screen names the visible step of the workflow.
type Screen string

const (
	ScreenIntake  Screen = "intake"
	ScreenResults Screen = "results"
)

// SessionState is the whole observable state of one summarization session.
type SessionState struct {
	Screen       Screen            `json:"screen"`
	Document     *UploadedDocument `json:"document,omitempty"`
	Instruction  string            `json:"instruction"`
	SummaryText  string            `json:"summary"`
	IsGenerating bool              `json:"is_generating"`
	Editing      bool              `json:"editing"`
	LastError    string            `json:"last_error,omitempty"`
}

// InitialSession is the state at start-up and after back-navigation.
func InitialSession() SessionState {
	return SessionState{Screen: ScreenIntake}
}

// SessionChan is a helper channel type for streaming session snapshots.
type SessionChan chan SessionState
