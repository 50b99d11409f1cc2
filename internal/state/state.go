// ABOUTME: Single source of truth for one widget's conversation id, status, and visibility flags
// ABOUTME: SetStatus is the only status mutation path and notifies the UI before returning

package state

import (
	"fmt"
	"sync"
)

// Status is the network status of the conversation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusError     Status = "error"
	StatusConnected Status = "connected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusLoading, StatusError, StatusConnected:
		return true
	}
	return false
}

// Snapshot is a point-in-time copy of the conversation state.
type Snapshot struct {
	ConversationID string `json:"conversation_id"`
	Status         Status `json:"status"`
	IsOpen         bool   `json:"is_open"`
	IsInitialized  bool   `json:"is_initialized"`
}

// UIUpdater is notified synchronously on every status change.
type UIUpdater interface {
	UpdateUIState(snap Snapshot)
}

// UIUpdaterFunc adapts a function to UIUpdater.
type UIUpdaterFunc func(snap Snapshot)

// UpdateUIState calls f(snap).
func (f UIUpdaterFunc) UpdateUIState(snap Snapshot) {
	f(snap)
}

// State holds the conversation state for one widget. Only the chat
// controller writes to it; renderers and HTTP handlers read snapshots.
type State struct {
	mu   sync.Mutex
	snap Snapshot

	// notifyMu orders status writes with their notifications, so the UI
	// always receives the last status written.
	notifyMu sync.Mutex
	notifier UIUpdater
}

// New creates the state for a widget. The conversation id is fixed for the
// lifetime of the returned State.
func New(conversationID string, notifier UIUpdater) *State {
	if notifier == nil {
		notifier = UIUpdaterFunc(func(Snapshot) {})
	}
	return &State{
		snap: Snapshot{
			ConversationID: conversationID,
			Status:         StatusIdle,
		},
		notifier: notifier,
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// ConversationID returns the immutable conversation id.
func (s *State) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.ConversationID
}

// Status returns the current status.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Status
}

// SetStatus changes the status and notifies the UI before returning, so no
// render can observe the old status once the call completes. Concurrent
// calls are serialized through the notification; the notifier must not call
// SetStatus itself.
func (s *State) SetStatus(status Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.snap.Status = status
	snap := s.snap
	s.mu.Unlock()

	s.notifier.UpdateUIState(snap)
	return nil
}

// SetOpen records whether the widget panel is visible.
func (s *State) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsOpen = open
}

// MarkInitialized flags the widget as initialized. It returns false if it
// already was.
func (s *State) MarkInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.IsInitialized {
		return false
	}
	s.snap.IsInitialized = true
	return true
}
