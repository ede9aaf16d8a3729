// Package history persists deposit outcomes so submitted hashes survive the process.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deposit-bridge/pkg/types"
)

const (
	DefaultFileName = ".deposit-bridge-history.json"
)

// Status is the outcome recorded for a deposit
type Status string

const (
	StatusSubmitted Status = "submitted" // Hash known, finality not verified
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one finished deposit session
type Record struct {
	ID        string                     `json:"id"`
	SessionID string                     `json:"session_id"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Chain     string                     `json:"chain"`
	Symbol    string                     `json:"symbol"`
	Amount    string                     `json:"amount"`
	Direct    bool                       `json:"direct"`
	Hash      string                     `json:"hash,omitempty"`
	Confirmed bool                       `json:"confirmed"`
	Status    Status                     `json:"status"`
	ErrorKind string                     `json:"error_kind,omitempty"`
	Error     string                     `json:"error,omitempty"`
	Attempts  []types.TransactionAttempt `json:"attempts,omitempty"`
}

// fileFormat is the JSON layout on disk
type fileFormat struct {
	Records []*Record `json:"records"`
}

// Store is a JSON file of deposit records
type Store struct {
	filePath string
	mu       sync.RWMutex
	records  []*Record
}

// NewStore opens the history at filePath, defaulting to the home directory
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	s := &Store{filePath: filePath}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}
	s.records = f.Records
	return nil
}

// saveLocked writes all records; the caller holds the write lock
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Append stores a new record, assigning its ID and timestamps
func (s *Store) Append(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	s.records = append(s.records, r)
	return s.saveLocked()
}

// Update replaces the record with the same ID
func (s *Store) Update(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.records {
		if existing.ID == r.ID {
			r.UpdatedAt = time.Now().UTC()
			s.records[i] = r
			return s.saveLocked()
		}
	}
	return fmt.Errorf("record '%s' not found", r.ID)
}

// Get returns the record with id, accepting a unique prefix
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Record
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
		if strings.HasPrefix(r.ID, id) {
			if found != nil {
				return nil, fmt.Errorf("record prefix '%s' is ambiguous", id)
			}
			found = r
		}
	}
	if found == nil {
		return nil, fmt.Errorf("record '%s' not found", id)
	}
	return found, nil
}

// FindByHash returns the record holding a transaction hash
func (s *Store) FindByHash(hash string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Hash != "" && strings.EqualFold(r.Hash, hash) {
			return r, true
		}
	}
	return nil, false
}

// Settle records the on-chain outcome for the deposit whose own hash is hash.
// Hashes that only appear in attempts, such as approvals, match nothing.
func (s *Store) Settle(hash string, confirmed bool, detail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.Hash == "" || !strings.EqualFold(r.Hash, hash) {
			continue
		}
		r.Confirmed = confirmed
		r.Status = StatusConfirmed
		if !confirmed {
			r.Status = StatusFailed
			r.Error = detail
		}
		r.UpdatedAt = time.Now().UTC()
		return true, s.saveLocked()
	}
	return false, nil
}

// List returns records newest first
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListByStatus returns records with status, newest first
func (s *Store) ListByStatus(status Status) []*Record {
	var out []*Record
	for _, r := range s.List() {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// FilePath returns the history file location
func (s *Store) FilePath() string {
	return s.filePath
}
