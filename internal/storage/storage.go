package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

// ErrIOFailure is returned when a partition cannot be read, parsed or written
var ErrIOFailure = errors.New("partition i/o failure")

// Storage handles persistence of monthly partition files
type Storage struct {
	dataDir string
	prefix  string
}

// Partition is the on-disk content of one monthly file
type Partition struct {
	Key    quake.PartitionKey
	Path   string
	Exists bool
	Header []string
	Rows   [][]string
}

// New creates a new Storage instance
func New(dataDir, prefix string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", ErrIOFailure, err)
	}

	if prefix == "" {
		prefix = quake.DefaultFilePrefix
	}

	return &Storage{
		dataDir: dataDir,
		prefix:  prefix,
	}, nil
}

// DataDir returns the resolved data directory
func (s *Storage) DataDir() string {
	return s.dataDir
}

// Path returns the path to a partition file
func (s *Storage) Path(key quake.PartitionKey) string {
	return filepath.Join(s.dataDir, key.FileName(s.prefix))
}

// Exists reports whether a partition file is present
func (s *Storage) Exists(key quake.PartitionKey) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: checking %s: %w", ErrIOFailure, s.Path(key), err)
}

// Load reads a whole partition. A missing file is not an error; the returned
// Partition has Exists false and no rows.
func (s *Storage) Load(key quake.PartitionKey) (*Partition, error) {
	p := &Partition{Key: key, Path: s.Path(key)}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIOFailure, p.Path, err)
	}
	p.Exists = true

	records, err := readCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrIOFailure, p.Path, err)
	}

	// An empty file is treated as a partition that has not been started yet
	if len(records) == 0 {
		return p, nil
	}

	p.Header = records[0]
	p.Header[0] = strings.TrimPrefix(p.Header[0], "\ufeff")
	p.Rows = records[1:]
	return p, nil
}

// Append adds rows to a partition without touching existing content.
// The existing bytes are copied to a temp file in the same directory, the new rows
// are written after them, and the temp file is renamed over the original.
// A partition that does not exist yet (or is empty) gets the header first.
func (s *Storage) Append(key quake.PartitionKey, header []string, rows [][]string) error {
	path := s.Path(key)

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: reading %s: %w", ErrIOFailure, path, err)
	}
	if len(bytes.TrimSpace(existing)) == 0 {
		existing = nil
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}

	w := csv.NewWriter(&buf)
	if len(existing) == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("%w: encoding header: %w", ErrIOFailure, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("%w: encoding rows: %w", ErrIOFailure, err)
	}

	return s.replace(path, buf.Bytes())
}

// Create starts an empty partition holding only the header row.
// An existing partition is left untouched.
func (s *Storage) Create(key quake.PartitionKey, header []string) (bool, error) {
	exists, err := s.Exists(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.Append(key, header, nil); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the keys of all partitions present in the data directory, oldest first
func (s *Storage) List() ([]quake.PartitionKey, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dataDir), s.prefix+"_*.csv")
	if err != nil {
		return nil, fmt.Errorf("%w: listing partitions: %w", ErrIOFailure, err)
	}

	keys := make([]quake.PartitionKey, 0, len(matches))
	for _, m := range matches {
		key, ok := quake.ParsePartitionFileName(m)
		if !ok || key.FileName(s.prefix) != m {
			continue
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Before(keys[j])
	})
	return keys, nil
}

// replace writes data to a temp file next to path, syncs it and renames it into place
func (s *Storage) replace(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrIOFailure, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: writing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: syncing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: setting mode on %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: renaming into %s: %w", ErrIOFailure, path, err)
	}

	return nil
}

// readCSV parses a partition, rejecting ragged rows and bad quoting
func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0
	return reader.ReadAll()
}
