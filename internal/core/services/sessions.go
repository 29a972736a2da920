package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/engine"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// SessionManager holds one adherence engine per user, loaded lazily
// from the persistence layer on first access. The engine itself does no
// locking (single-writer model); the manager serializes all access to a
// user's engine behind a per-session mutex so HTTP handlers and the
// missed-dose sweep never mutate the same session concurrently.
type SessionManager struct {
	medRepo  ports.MedicationRepository
	doseRepo ports.DoseRecordRepository

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

type session struct {
	mu     sync.Mutex
	eng    *engine.Engine
	loaded bool
}

// NewSessionManager creates a session manager backed by the given repositories
func NewSessionManager(medRepo ports.MedicationRepository, doseRepo ports.DoseRecordRepository) *SessionManager {
	return &SessionManager{
		medRepo:  medRepo,
		doseRepo: doseRepo,
		sessions: make(map[uuid.UUID]*session),
	}
}

// WithSession runs fn against the user's engine while holding the
// session lock. The session is loaded from the repositories on first
// use: medications and dose records are handed to the engine once and
// the engine owns them from then on, with mutations written through to
// the repositories by the services.
func (sm *SessionManager) WithSession(ctx context.Context, userID uuid.UUID, fn func(eng *engine.Engine) error) error {
	s := sm.session(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		meds, err := sm.medRepo.ListMedicationsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load medications for session: %w", err)
		}
		records, err := sm.doseRepo.ListDoseRecordsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load dose records for session: %w", err)
		}
		s.eng.Load(meds, records)
		s.loaded = true
	}

	return fn(s.eng)
}

// Invalidate drops a user's session so the next access reloads from the
// repositories. Used after out-of-band bulk changes (remote sync).
func (sm *SessionManager) Invalidate(userID uuid.UUID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}

func (sm *SessionManager) session(userID uuid.UUID) *session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[userID]
	if !ok {
		s = &session{eng: engine.New()}
		sm.sessions[userID] = s
	}
	return s
}
