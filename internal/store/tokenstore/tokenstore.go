// Package tokenstore persists session credentials between runs.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Makepad-fr/tada-client/internal/model"
	"github.com/Makepad-fr/tada-client/internal/store/jsonstore"
)

// EnvToken overrides the credentials file when set.
const EnvToken = "TADA_TOKEN"

const (
	SourceEnv    = "env"
	SourceFile   = "file"
	SourceMemory = "memory"
)

// ErrEmpty is returned when saving tokens without an access token.
var ErrEmpty = errors.New("empty token")

// Tokens is what survives a restart.
type Tokens struct {
	Access    string      `json:"token"`
	Refresh   string      `json:"refreshToken,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	User      *model.User `json:"user,omitempty"`
	SavedAt   time.Time   `json:"saved_at"`

	Source string `json:"-"` // "env" | "file" | "memory"
}

// Empty reports whether there is no access token.
func (t Tokens) Empty() bool { return t.Access == "" }

// Store loads, saves and clears persisted tokens. Load returns zero Tokens
// and no error when nothing is stored.
type Store interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// FileStore keeps tokens in a single owner-only JSON file.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Tokens, error) {
	// 1) env override
	if env := stripBearer(os.Getenv(EnvToken)); env != "" {
		return Tokens{Access: env, Source: SourceEnv}, nil
	}

	// 2) file
	var t Tokens
	found, err := jsonstore.Load(s.path, &t)
	if err != nil {
		return Tokens{}, fmt.Errorf("read credentials: %w", err)
	}
	if !found {
		return Tokens{}, nil // not logged in
	}
	t.Access = stripBearer(t.Access)
	t.Source = SourceFile
	return t, nil
}

func (s *FileStore) Save(t Tokens) error {
	t.Access = stripBearer(t.Access)
	if t.Access == "" {
		return ErrEmpty
	}
	t.SavedAt = s.now()
	if err := jsonstore.Save(s.path, t, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := jsonstore.Remove(s.path); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// MemoryStore keeps tokens for the life of the process.
type MemoryStore struct {
	mu sync.Mutex
	t  Tokens
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, nil
}

func (s *MemoryStore) Save(t Tokens) error {
	t.Access = stripBearer(t.Access)
	if t.Access == "" {
		return ErrEmpty
	}
	t.Source = SourceMemory
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.t = Tokens{}
	s.mu.Unlock()
	return nil
}

// stripBearer trims s and drops a leading "Bearer" scheme. A scheme with
// no token after it yields "".
func stripBearer(s string) string {
	s = strings.TrimSpace(s)
	const scheme = "bearer"
	if len(s) < len(scheme) || !strings.EqualFold(s[:len(scheme)], scheme) {
		return s
	}
	rest := s[len(scheme):]
	if rest == "" {
		return ""
	}
	if rest[0] == ' ' || rest[0] == '\t' {
		return strings.TrimSpace(rest)
	}
	return s
}
