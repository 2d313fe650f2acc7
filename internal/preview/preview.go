// Package preview holds the presentation state for one reviewed contract and
// renders it as plain-text views. State mutation is serialized; rendering is
// done by pure functions over snapshots so views can never observe a
// half-updated contract.
package preview

import (
	"sync"

	"github.com/lexsuite/review-cli/internal/model"
)

// View selects which projection of the state is active.
type View int

const (
	// ViewOriginal shows the extracted contract text as-is.
	ViewOriginal View = iota
	// ViewSummary shows the risk summary with recomputed severity counts.
	ViewSummary
	// ViewIssues shows the flat issue list grouped by severity.
	ViewIssues
	// ViewAnnotated shows the dual-pane view with issues anchored to lines.
	ViewAnnotated
)

func (v View) String() string {
	switch v {
	case ViewOriginal:
		return "original"
	case ViewSummary:
		return "summary"
	case ViewIssues:
		return "issues"
	case ViewAnnotated:
		return "annotated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the preview state.
type Snapshot struct {
	FileName   string
	Title      string
	Original   string
	Result     *model.ReviewResult
	ActiveView View
}

// State is the single mutable holder of what the preview surface shows.
// All writes go through its methods; readers take snapshots.
type State struct {
	mu       sync.RWMutex
	fileName string
	title    string
	original string
	result   *model.ReviewResult
	active   View
}

// NewState returns an empty preview state showing the original view.
func NewState() *State {
	return &State{active: ViewOriginal}
}

// SetContract installs the source document. Any previous review result is
// cleared, since it was matched against different text.
func (s *State) SetContract(fileName, title, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = fileName
	s.title = title
	s.original = text
	s.result = nil
	s.active = ViewOriginal
}

// SetResult installs the review findings for the current contract.
func (s *State) SetResult(result *model.ReviewResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

// Activate switches the active view.
func (s *State) Activate(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = v
}

// Clear resets the state to empty.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = ""
	s.title = ""
	s.original = ""
	s.result = nil
	s.active = ViewOriginal
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		FileName:   s.fileName,
		Title:      s.title,
		Original:   s.original,
		Result:     s.result,
		ActiveView: s.active,
	}
}
