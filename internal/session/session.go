package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kobzarvs/qdoc/internal/config"
	"github.com/kobzarvs/qdoc/internal/logger"
)

// MarkerState is a persisted line marker.
type MarkerState struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Note string `json:"note,omitempty"`
}

// FileState stores what qdoc remembers about a single file
type FileState struct {
	Encoding   string        `json:"encoding,omitempty"`
	LineEnding string        `json:"line_ending,omitempty"`
	BOM        bool          `json:"bom,omitempty"`
	Markers    []MarkerState `json:"markers,omitempty"`
	LastOpened time.Time     `json:"last_opened"`
}

type Session struct {
	Files      map[string]FileState `json:"files"`
	ActiveFile string               `json:"active_file,omitempty"`
	LastSaved  time.Time            `json:"last_saved"`
}

// Manager handles session persistence. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	session  Session
	path     string
	dirty    bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// DefaultPath is session.json inside the state directory.
func DefaultPath() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// NewManager loads the session at path and, when autosave is positive,
// saves dirty state at that interval until Stop.
func NewManager(path string, autosave time.Duration) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	m := &Manager{
		session:  Session{Files: make(map[string]FileState)},
		path:     path,
		stopChan: make(chan struct{}),
	}
	if err := m.load(); err != nil {
		// a corrupt session is replaced on the next save
		logger.Warn("session unreadable", "path", path, "err", err)
	}
	if autosave > 0 {
		go m.autosaveLoop(autosave)
	}
	return m, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("decode %s: %w", m.path, err)
	}
	if session.Files == nil {
		session.Files = make(map[string]FileState)
	}
	m.session = session
	return nil
}

// Save persists the session to disk if anything changed.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	m.session.LastSaved = time.Now()
	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	m.dirty = false
	logger.Debug("session saved", "path", m.path, "files", len(m.session.Files))
	return nil
}

// ForceSave saves even if not dirty
func (m *Manager) ForceSave() error {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
	return m.Save()
}

// FileState returns the saved state for an absolute path.
func (m *Manager) FileState(absPath string) (FileState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.session.Files[absPath]
	return state, ok
}

// SetFileState replaces the state for a file and makes it active.
func (m *Manager) SetFileState(absPath string, state FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.Markers = append([]MarkerState(nil), state.Markers...)
	m.session.Files[absPath] = state
	m.session.ActiveFile = absPath
	m.dirty = true
}

// Forget drops a file from the session.
func (m *Manager) Forget(absPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.session.Files[absPath]; !ok {
		return
	}
	delete(m.session.Files, absPath)
	if m.session.ActiveFile == absPath {
		m.session.ActiveFile = ""
	}
	m.dirty = true
}

// Files lists the remembered paths in sorted order.
func (m *Manager) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.session.Files))
	for p := range m.session.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) ActiveFile() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.ActiveFile
}

func (m *Manager) autosaveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Save(); err != nil {
				logger.Warn("session autosave failed", "path", m.path, "err", err)
			}
		case <-m.stopChan:
			return
		}
	}
}

// Stop ends the autosave loop and writes the final state. Only the first
// call has an effect.
func (m *Manager) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stopChan)
		err = m.Save()
	})
	return err
}
