package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File stores one JSON document per user under a directory:
// <dir>/<username>.json. Lookups read the file every time so records edited
// on disk are picked up without a restart.
type File struct {
	dir string
	// mu serializes read-modify-write cycles such as AddScore.
	mu sync.Mutex
}

// NewFile creates a file-backed Store rooted at dir, creating dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) FindByIdentity(_ context.Context, identity string) (Record, error) {
	return f.load(identity)
}

func (f *File) Authenticate(ctx context.Context, username, password string) (Record, error) {
	return authenticate(ctx, f, username, password)
}

// Save writes rec with indentation for readability.
func (f *File) Save(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(rec)
}

func (f *File) AddScore(_ context.Context, identity string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.load(identity)
	if err != nil {
		return 0, err
	}
	rec.Score += delta
	if err := f.write(rec); err != nil {
		return 0, err
	}
	return rec.Score, nil
}

// List returns every record in the directory, skipping unreadable files.
func (f *File) List(_ context.Context) ([]Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := f.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		records = append(records, rec.Public())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Username < records[j].Username
	})
	return records, nil
}

// Delete removes the user's file.
func (f *File) Delete(identity string) error {
	if err := ValidateUsername(identity); err != nil {
		return err
	}
	if err := os.Remove(f.path(identity)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to remove user file: %w", err)
	}
	return nil
}

func (f *File) load(identity string) (Record, error) {
	if err := ValidateUsername(identity); err != nil {
		return Record{}, ErrUserNotFound
	}

	data, err := os.ReadFile(f.path(identity))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrUserNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read user file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal user %s: %w", identity, err)
	}
	if rec.Username == "" {
		rec.Username = identity
	}
	return rec, nil
}

func (f *File) write(rec Record) error {
	if err := ValidateUsername(rec.Username); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := os.WriteFile(f.path(rec.Username), data, 0644); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	return nil
}

func (f *File) path(identity string) string {
	return filepath.Join(f.dir, identity+".json")
}
