package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// PreferencesKey is the document key the settings record is stored under.
const PreferencesKey = "captainFocusVoiceSettings"

const (
	MinPitch = 0.5
	MaxPitch = 2.0
	MinRate  = 0.5
	MaxRate  = 1.5
)

// Preferences is the persisted voice settings record.
type Preferences struct {
	SelectedVoice int     `json:"selectedVoice"`
	Pitch         float64 `json:"pitch"`
	Rate          float64 `json:"rate"`
}

// DefaultPreferences returns the settings used when nothing was saved.
func DefaultPreferences() Preferences {
	return Preferences{SelectedVoice: 0, Pitch: 1.1, Rate: 0.9}
}

// Clamp forces every field into its accepted range.
func (p Preferences) Clamp() Preferences {
	if p.SelectedVoice < 0 {
		p.SelectedVoice = 0
	}
	p.Pitch = clamp(p.Pitch, MinPitch, MaxPitch)
	p.Rate = clamp(p.Rate, MinRate, MaxRate)
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return min(max(v, lo), hi)
}

// PreferenceStore persists the settings record. Load returns defaults when
// no record exists.
type PreferenceStore interface {
	Load() (Preferences, error)
	Save(Preferences) error
}

// MemoryStore keeps the record in memory.
type MemoryStore struct {
	mu    sync.Mutex
	prefs *Preferences
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return DefaultPreferences(), nil
	}
	return *s.prefs, nil
}

func (s *MemoryStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = &p
	return nil
}

// FileStore keeps the record in a JSON document on disk, next to any other
// keys the document already holds.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first
// Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPreferencesPath returns ~/.captain-focus/voice.json.
func DefaultPreferencesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".captain-focus", "voice.json"), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the saved record. A missing file, a missing key or a
// malformed record all yield the defaults.
func (s *FileStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument()
	if err != nil {
		return DefaultPreferences(), err
	}
	raw, ok := doc[PreferencesKey]
	if !ok {
		return DefaultPreferences(), nil
	}

	prefs := DefaultPreferences()
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return DefaultPreferences(), nil
	}
	return prefs.Clamp(), nil
}

// Save replaces the record and leaves other keys in the document alone.
func (s *FileStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument()
	if err != nil {
		return err
	}
	record, err := json.Marshal(p.Clamp())
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	doc[PreferencesKey] = record

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".voice-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace preferences file: %w", err)
	}
	return nil
}

// readDocument returns the whole document; an unreadable document is
// treated as empty so a corrupt file can be overwritten.
func (s *FileStore) readDocument() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return map[string]json.RawMessage{}, nil
	}
	return doc, nil
}
