// Package agent implements the tool-using agent loop and the state it shares
// with tools during one workflow run.
package agent

import "time"

// StatusInitializing is the status of a run before the agent reports progress.
const StatusInitializing = "initializing"

// ProgressStatus is one progress report parsed from agent output.
type ProgressStatus struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// State is owned by one workflow run and passed by reference to the loop and
// every tool invocation. Files is written only by the file tool after a
// successful batch; Progress and CurrentStatus only by the Tracker.
type State struct {
	Summary       string            `json:"summary"`
	Files         map[string]string `json:"files"`
	Progress      []ProgressStatus  `json:"progress"`
	CurrentStatus string            `json:"currentStatus"`
}

// NewState returns the initial state of a run.
func NewState() *State {
	return &State{
		Files:         map[string]string{},
		Progress:      []ProgressStatus{},
		CurrentStatus: StatusInitializing,
	}
}

// Done reports whether the agent has signalled completion.
func (s *State) Done() bool {
	return s.Summary != ""
}
