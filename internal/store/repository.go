// Package store persists the session document. Every mutation goes through
// Update: load the whole document, apply one change, write the whole document
// back atomically. There is no partial or streaming write path; a failed
// operation leaves the file untouched.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"casetrail/internal/logging"
	"casetrail/internal/types"
)

// ErrNotFound is returned when the session document does not exist yet.
var ErrNotFound = errors.New("session document not found")

// Repository owns load and save for one session document path.
type Repository struct {
	path string
}

// NewRepository creates a repository for the given state file path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the state file path.
func (r *Repository) Path() string { return r.path }

// Create writes a fresh, empty session document. Fails if one already exists;
// exactly one document exists per research request.
func (r *Repository) Create(doc *types.SessionDocument) error {
	if _, err := os.Stat(r.path); err == nil {
		return fmt.Errorf("session document already exists: %s", r.path)
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return r.write(doc)
}

// Load reads and decodes the full session document.
func (r *Repository) Load() (*types.SessionDocument, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.path)
		}
		return nil, fmt.Errorf("failed to read session document: %w", err)
	}

	var doc types.SessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session document %s: %w", r.path, err)
	}
	return &doc, nil
}

// Save writes the full document atomically: encode to a temp file in the same
// directory, then rename over the original. Readers never observe a torn write.
func (r *Repository) Save(doc *types.SessionDocument) error {
	doc.UpdatedAt = time.Now()
	return r.write(doc)
}

func (r *Repository) write(doc *types.SessionDocument) error {
	timer := logging.StartTimer(logging.CategoryState, "write")
	defer timer.Stop()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session document: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace session document: %w", err)
	}

	logging.Get(logging.CategoryState).Debug("wrote %d bytes to %s", len(data), r.path)
	return nil
}

// Update runs one read-modify-write cycle. The mutation fn receives the loaded
// document; if it returns an error nothing is written and the error is
// returned unchanged, so structural failures never corrupt the document.
func (r *Repository) Update(fn func(*types.SessionDocument) error) (*types.SessionDocument, error) {
	doc, err := r.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := r.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
