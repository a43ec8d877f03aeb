package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"collab-auth/internal/utils"
)

// FileStore keeps sessions in a JSON file so they outlive the process.
// Every call reads the file afresh; another process may have written it.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (f *FileStore) Create(_ context.Context, s Session) error {
	if s.SessionID == "" || s.AccountID == "" {
		return ErrInvalidSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return err
	}
	if _, exists := sessions[s.SessionID]; exists {
		return ErrSessionExists
	}
	sessions[s.SessionID] = s
	return f.save(sessions)
}

func (f *FileStore) Get(_ context.Context, sessionID string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return nil, err
	}
	s, ok := sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *FileStore) Update(_ context.Context, s Session) error {
	if s.SessionID == "" {
		return ErrInvalidSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[s.SessionID]; !ok {
		return ErrSessionNotFound
	}

	if s.Expired(f.now()) {
		delete(sessions, s.SessionID)
	} else {
		sessions[s.SessionID] = s
	}
	return f.save(sessions)
}

func (f *FileStore) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return err
	}
	delete(sessions, sessionID)
	return f.save(sessions)
}

// load returns the live sessions keyed by id. Expired ones are left out
// and disappear with the next save.
func (f *FileStore) load() (map[string]Session, error) {
	out := make(map[string]Session)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}

	var list []Session
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}

	now := f.now()
	for _, s := range list {
		if !s.Expired(now) {
			out[s.SessionID] = s
		}
	}
	return out, nil
}

func (f *FileStore) save(sessions map[string]Session) error {
	list := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, s)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := utils.WriteFileAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("session: save %s: %w", f.path, err)
	}
	return nil
}
