package store

import (
	"errors"
	"sync"
	"time"

	"voicedesk/agent/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

// Store is the in-memory registry of sessions and their event logs. The
// core never persists; anything durable belongs to an external collaborator
// scraping this surface.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*types.SessionInfo
	events    map[string][]types.Event
	telemetry map[string]types.Telemetry
}

func New() *Store {
	return &Store{
		sessions:  make(map[string]*types.SessionInfo),
		events:    make(map[string][]types.Event),
		telemetry: make(map[string]types.Telemetry),
	}
}

func (s *Store) CreateSession(sess *types.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

func (s *Store) GetSession(id string) *types.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *Store) SetSessionStatus(id, status string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Status = status
	}
	s.mu.Unlock()
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], evt)
	// Cap total events per session to avoid unbounded growth
	const maxEvents = 200
	if l := len(s.events[sessionID]); l > maxEvents {
		keep := maxEvents - 1
		dropped := l - keep
		s.events[sessionID] = append([]types.Event(nil), s.events[sessionID][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep}}
		s.events[sessionID] = append(s.events[sessionID], warn)
	}
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

// SetTelemetry records the finalize-time aggregate for a session.
func (s *Store) SetTelemetry(sessionID string, t types.Telemetry) {
	s.mu.Lock()
	s.telemetry[sessionID] = t
	s.mu.Unlock()
}

func (s *Store) GetTelemetry(sessionID string) (types.Telemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.telemetry[sessionID]
	return t, ok
}
