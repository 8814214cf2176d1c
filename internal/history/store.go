// Package history persists per-room message logs as append-only text files.
// One file per room, line-oriented UTF-8, readable and appendable across
// restarts.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store owns one log file per room. Writers to the same room are serialized
// so append order matches broadcast order; readers and writers of different
// rooms never contend.
type Store struct {
	dir string

	mu    sync.Mutex // guards rooms only, never held during I/O
	rooms map[string]*roomLog
}

type roomLog struct {
	mu   sync.RWMutex
	path string
}

// NewStore creates the log directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Store{
		dir:   dir,
		rooms: make(map[string]*roomLog),
	}, nil
}

func (s *Store) room(name string) *roomLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	rl, ok := s.rooms[name]
	if !ok {
		// Room ids are client-supplied; escaping keeps them out of path syntax.
		rl = &roomLog{path: filepath.Join(s.dir, url.PathEscape(name)+".log")}
		s.rooms[name] = rl
	}
	return rl
}

// Append writes one line to the room's log, creating it on first use.
func (s *Store) Append(room, line string) error {
	rl := s.room(room)
	rl.mu.Lock()
	defer rl.mu.Unlock()

	f, err := os.OpenFile(rl.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open room log %q: %w", room, err)
	}

	_, werr := f.WriteString(line + "\n")
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append to room log %q: %w", room, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close room log %q: %w", room, cerr)
	}
	return nil
}

// ReadTail returns up to max most recent lines in chronological order.
// A room with no log yet yields an empty result, not an error.
func (s *Store) ReadTail(room string, max int) ([]string, error) {
	rl := s.room(room)
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	data, err := os.ReadFile(rl.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read room log %q: %w", room, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if max >= 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines, nil
}
