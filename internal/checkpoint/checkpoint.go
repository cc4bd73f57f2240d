// Package checkpoint persists step outputs so a workflow run can be resumed.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Record is the persisted output of one completed step.
type Record struct {
	StepID    string          `json:"step_id"`
	Name      string          `json:"name"`
	Seq       int             `json:"seq"`
	Output    json.RawMessage `json:"output"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store manages step records for a single run.
type Store struct {
	dir     string
	records map[string]*Record
	mu      sync.RWMutex
}

// NewStore opens (or creates) the store in dir and loads existing records.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	s := &Store{
		dir:     dir,
		records: make(map[string]*Record),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenRun opens the store for runID under base.
func OpenRun(base, runID string) (*Store, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	return NewStore(filepath.Join(base, runID))
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Get retrieves a record by step ID.
func (s *Store) Get(stepID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[stepID]
	return rec, ok
}

// Save persists a record. The file is replaced atomically.
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := AtomicWriteJSON(filepath.Join(s.dir, FileName(rec.StepID)), rec); err != nil {
		return fmt.Errorf("failed to save step %s: %w", rec.StepID, err)
	}
	s.records[rec.StepID] = rec
	return nil
}

// Trail returns all records ordered by sequence.
func (s *Store) Trail() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		trail = append(trail, rec)
	}
	sort.Slice(trail, func(i, j int) bool { return trail[i].Seq < trail[j].Seq })
	return trail
}

// Len returns the number of completed steps.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Load reads records from disk. Unreadable or partial files are skipped.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		rec, err := ReadRecord(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		s.records[rec.StepID] = rec
	}
	return nil
}

// ReadRecord decodes a single record file.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.StepID == "" {
		return nil, fmt.Errorf("record %s has no step id", path)
	}
	return &rec, nil
}

// FileName maps a step ID to its file name.
func FileName(stepID string) string {
	return strings.ReplaceAll(stepID, ":", "_") + ".json"
}
