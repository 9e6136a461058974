package client

import (
	"sync"
	"time"

	"github.com/aeolun/socialite/pkg/model"
)

// MemoryState is an in-memory implementation of StateInterface, used by
// tests and by the CLI's --ephemeral mode.
type MemoryState struct {
	mu sync.RWMutex

	// In-memory storage
	config  map[string]string
	session model.Session
	now     func() time.Time

	// Error injection
	getConfigErr    error
	setConfigErr    error
	saveSessionErr  error
	clearSessionErr error

	clears int
}

// NewMemoryState creates an empty in-memory state
func NewMemoryState() *MemoryState {
	return &MemoryState{
		config: make(map[string]string),
		now:    time.Now,
	}
}

// GetConfig retrieves a configuration value
func (s *MemoryState) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getConfigErr != nil {
		return "", s.getConfigErr
	}
	return s.config[key], nil
}

// SetConfig stores a configuration value
func (s *MemoryState) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setConfigErr != nil {
		return s.setConfigErr
	}
	s.config[key] = value
	return nil
}

// LoadSession returns the stored session
func (s *MemoryState) LoadSession() (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, nil
}

// SaveSession stores the session
func (s *MemoryState) SaveSession(session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveSessionErr != nil {
		return s.saveSessionErr
	}
	s.session = session
	return nil
}

// ClearSession forgets the session
func (s *MemoryState) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clearSessionErr != nil {
		return s.clearSessionErr
	}
	s.session = model.Session{}
	s.clears++
	return nil
}

// Token returns the bearer token of a valid, unexpired session
func (s *MemoryState) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.session.Valid() || TokenExpired(s.session.Token, s.now()) {
		return "", false
	}
	return s.session.Token, true
}

// ClearCredentials forgets the session after a server rejection
func (s *MemoryState) ClearCredentials() error {
	return s.ClearSession()
}

// Close is a no-op for in-memory state
func (s *MemoryState) Close() error {
	return nil
}

// Test helpers

// SetGetConfigError sets an error to return from GetConfig()
func (s *MemoryState) SetGetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getConfigErr = err
}

// SetSetConfigError sets an error to return from SetConfig()
func (s *MemoryState) SetSetConfigError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigErr = err
}

// SetSaveSessionError sets an error to return from SaveSession()
func (s *MemoryState) SetSaveSessionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSessionErr = err
}

// SetClearSessionError sets an error to return from ClearSession()
func (s *MemoryState) SetClearSessionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSessionErr = err
}

// SetClock replaces the time source used for expiry checks
func (s *MemoryState) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ClearCount returns how many times the session was cleared
func (s *MemoryState) ClearCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clears
}
