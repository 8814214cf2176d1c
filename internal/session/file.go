package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gsalazar/workchat/internal/domain"
)

// FileStore keeps sessions in a single JSON file under the data directory,
// plus a users file recording everyone who has ever logged in. Suitable for
// single-instance deployments; use the Redis store to share sessions.
type FileStore struct {
	mu           sync.Mutex
	sessionsPath string
	usersPath    string
	ttl          time.Duration // zero means sessions never expire
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{
		sessionsPath: filepath.Join(dir, "sessions.json"),
		usersPath:    filepath.Join(dir, "users.json"),
		ttl:          ttl,
	}, nil
}

// Create issues a token and persists the session.
func (s *FileStore) Create(ctx context.Context, user domain.Identity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions()
	if err != nil {
		return "", err
	}
	sessions[id] = &Session{User: user, CreatedAt: time.Now()}
	if err := s.saveSessions(sessions); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the session for a token, expiring it if the TTL has passed.
func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions()
	if err != nil {
		return nil, err
	}

	sess, ok := sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.ttl > 0 && time.Since(sess.CreatedAt) > s.ttl {
		delete(sessions, id)
		if err := s.saveSessions(sessions); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session; unknown tokens are a no-op.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions()
	if err != nil {
		return err
	}
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return s.saveSessions(sessions)
}

// SetDisplayName updates the visible name on an existing session.
func (s *FileStore) SetDisplayName(ctx context.Context, id, name string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions()
	if err != nil {
		return nil, err
	}
	sess, ok := sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.User.DisplayName = name
	if err := s.saveSessions(sessions); err != nil {
		return nil, err
	}
	return sess, nil
}

// Upsert records a user in the directory file, keyed by OAuth subject with
// email as fallback for accounts that predate subject tracking.
func (s *FileStore) Upsert(ctx context.Context, user domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]domain.Identity)
	if err := s.loadJSON(s.usersPath, &users); err != nil {
		return err
	}

	key := user.Subject
	if key == "" {
		key = user.Email
	}
	users[key] = user
	return s.saveJSON(s.usersPath, users)
}

func (s *FileStore) loadSessions() (map[string]*Session, error) {
	sessions := make(map[string]*Session)
	if err := s.loadJSON(s.sessionsPath, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *FileStore) saveSessions(sessions map[string]*Session) error {
	return s.saveJSON(s.sessionsPath, sessions)
}

func (s *FileStore) loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *FileStore) saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
