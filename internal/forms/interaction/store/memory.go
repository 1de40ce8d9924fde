package store

import (
	"context"
	"sync"

	"tripsecretary/internal/forms/interaction"
	id "tripsecretary/pkg/domain"
)

// Memory keeps interaction state in process memory. Used in tests and when
// Redis is not configured; state then lives only as long as the process.
type Memory struct {
	mu    sync.RWMutex
	forms map[string]interaction.FormState
}

func NewMemory() *Memory {
	return &Memory{forms: make(map[string]interaction.FormState)}
}

func memKey(userID id.UserID, formID string) string {
	return userID.String() + ":" + formID
}

func (s *Memory) Load(_ context.Context, userID id.UserID, formID string) (interaction.FormState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.forms[memKey(userID, formID)]
	if !ok {
		return interaction.FormState{}, nil
	}
	// Copy so callers can't mutate stored state behind the lock.
	out := make(interaction.FormState, len(stored))
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

func (s *Memory) Save(_ context.Context, userID id.UserID, formID string, state interaction.FormState) error {
	copied := make(interaction.FormState, len(state))
	for k, v := range state {
		copied[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[memKey(userID, formID)] = copied
	return nil
}

func (s *Memory) Delete(_ context.Context, userID id.UserID, formID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, memKey(userID, formID))
	return nil
}

func (s *Memory) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	prefix := userID.String() + ":"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.forms {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.forms, k)
		}
	}
	return nil
}
