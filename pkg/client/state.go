package client

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aeolun/socialite/pkg/model"
	"golang.org/x/crypto/nacl/secretbox"
	_ "modernc.org/sqlite"
)

const (
	sessionKeyFile = "session.key"
	keySize        = 32
	nonceSize      = 24
)

var ErrSealedTokenInvalid = errors.New("stored session token could not be opened")

// State manages client-side persistent state: the session credential and a
// small key/value config table. The token is sealed at rest with a key kept
// next to the database.
type State struct {
	db  *sql.DB
	dir string // Directory where state is stored
	key *[keySize]byte

	mu      sync.RWMutex
	session model.Session // cached copy of the persisted session
	now     func() time.Time
}

// OpenState opens or creates the client state database
func OpenState(path string) (*State, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, sessionKeyFile))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Client only needs one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrate(context.Background(), db, nil); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	state := &State{
		db:  db,
		dir: dir,
		key: key,
		now: time.Now,
	}

	session, err := state.readSession()
	if err != nil {
		db.Close()
		return nil, err
	}
	state.session = session

	return state, nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetStateDir returns the directory where state is stored
func (s *State) GetStateDir() string {
	return s.dir
}

// GetConfig retrieves a configuration value
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// LoadSession returns the persisted session; the zero Session when none
func (s *State) LoadSession() (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, nil
}

// SaveSession persists the session, replacing any previous one
func (s *State) SaveSession(session model.Session) error {
	sealed, err := s.seal([]byte(session.Token))
	if err != nil {
		return err
	}

	var userJSON sql.NullString
	if session.User != nil {
		data, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("failed to encode user snapshot: %w", err)
		}
		userJSON = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO Session (id, sealed_token, user_json, authenticated, updated_at)
		VALUES (1, ?, ?, ?, ?)
	`, sealed, userJSON, session.Authenticated, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.session = session
	return nil
}

// ClearSession removes the persisted session
func (s *State) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM Session"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.session = model.Session{}
	return nil
}

// Token returns the bearer token when the session is authenticated and the
// token is not known to be expired.
func (s *State) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.session.Valid() || TokenExpired(s.session.Token, s.now()) {
		return "", false
	}
	return s.session.Token, true
}

// ClearCredentials drops the credential after the server rejected it
func (s *State) ClearCredentials() error {
	return s.ClearSession()
}

func (s *State) readSession() (model.Session, error) {
	var (
		sealed        []byte
		userJSON      sql.NullString
		authenticated bool
	)
	err := s.db.QueryRow(`
		SELECT sealed_token, user_json, authenticated
		FROM Session
		WHERE id = 1
	`).Scan(&sealed, &userJSON, &authenticated)
	if err == sql.ErrNoRows {
		return model.Session{}, nil
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	token, err := s.open(sealed)
	if err != nil {
		// A key rotation or a copied database; the session is unusable but
		// that is not fatal, the user signs in again.
		return model.Session{}, nil
	}

	session := model.Session{
		Token:         string(token),
		Authenticated: authenticated,
	}
	if userJSON.Valid && userJSON.String != "" {
		var user model.User
		if err := json.Unmarshal([]byte(userJSON.String), &user); err == nil {
			session.User = &user
		}
	}
	return session, nil
}

func (s *State) seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, s.key), nil
}

func (s *State) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedTokenInvalid
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrSealedTokenInvalid
	}
	return plaintext, nil
}

// loadOrCreateKey reads the sealing key, generating it on first use
func loadOrCreateKey(path string) (*[keySize]byte, error) {
	var key [keySize]byte

	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("session key %s has unexpected length %d", path, len(data))
		}
		copy(key[:], data)
		return &key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := os.WriteFile(path, key[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to write session key: %w", err)
	}
	return &key, nil
}
