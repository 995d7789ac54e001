package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

var july = quake.PartitionKey{Year: 2025, Month: time.July}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store
}

func TestLoad_Missing(t *testing.T) {
	store := newTestStorage(t)

	p, err := store.Load(july)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if p.Exists {
		t.Error("expected Exists = false for a missing partition")
	}
	if len(p.Rows) != 0 || p.Header != nil {
		t.Errorf("expected empty partition, got %+v", p)
	}
	if filepath.Base(p.Path) != "phivolcs_earthquakes_2025_07.csv" {
		t.Errorf("Path = %q", p.Path)
	}
}

func TestAppend_CreatesWithHeader(t *testing.T) {
	store := newTestStorage(t)
	rows := [][]string{{"2025-07-15 10:00", "10.0", "120.0", "10", "4.1", "Location A"}}

	if err := store.Append(july, quake.DefaultHeader, rows); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.Path(july))
	if err != nil {
		t.Fatalf("reading partition: %v", err)
	}
	want := "Date-Time,Latitude,Longitude,Depth,Magnitude,Location\n" +
		"2025-07-15 10:00,10.0,120.0,10,4.1,Location A\n"
	if string(data) != want {
		t.Errorf("partition content = %q, want %q", string(data), want)
	}
}

func TestAppend_PreservesExistingBytes(t *testing.T) {
	store := newTestStorage(t)

	// Hand-written file without trailing newline and with quoting the csv package
	// would not produce itself
	original := "Date-Time,Latitude,Longitude,Depth,Magnitude,Location\n" +
		"\"2025-07-15 10:00\",10.0,120.0,10,4.1,\"Location A\""
	if err := os.WriteFile(store.Path(july), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	rows := [][]string{{"2025-07-15 10:10", "10.1", "120.1", "5", "3.2", "Location B, Province"}}
	if err := store.Append(july, quake.DefaultHeader, rows); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.Path(july))
	if err != nil {
		t.Fatal(err)
	}
	want := original + "\n" + "2025-07-15 10:10,10.1,120.1,5,3.2,\"Location B, Province\"\n"
	if string(data) != want {
		t.Errorf("partition content = %q, want %q", string(data), want)
	}

	p, err := store.Load(july)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(p.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(p.Rows))
	}

	// No temp files left behind
	entries, _ := os.ReadDir(store.DataDir())
	if len(entries) != 1 {
		t.Errorf("expected only the partition file, found %d entries", len(entries))
	}
}

func TestAppend_EmptyFileGetsHeader(t *testing.T) {
	store := newTestStorage(t)
	if err := os.WriteFile(store.Path(july), []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.Append(july, quake.DefaultHeader, [][]string{{"a", "b", "c", "d", "e", "f"}}); err != nil {
		t.Fatalf("Append() unexpected error: %v", err)
	}

	p, err := store.Load(july)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Header) != len(quake.DefaultHeader) || p.Header[0] != quake.ColumnDateTime {
		t.Errorf("Header = %v, want default header", p.Header)
	}
	if len(p.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(p.Rows))
	}
}

func TestLoad_StripsBOM(t *testing.T) {
	store := newTestStorage(t)
	content := "\ufeffDate-Time,Latitude,Longitude,Depth,Magnitude,Location\n"
	if err := os.WriteFile(store.Path(july), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := store.Load(july)
	if err != nil {
		t.Fatal(err)
	}
	if p.Header[0] != quake.ColumnDateTime {
		t.Errorf("Header[0] = %q, want %q", p.Header[0], quake.ColumnDateTime)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"ragged row", "Date-Time,Latitude\n2025-07-15 10:00,10.0,120.0\n"},
		{"bad quoting", "Date-Time,Location\n2025-07-15 10:00,\"Location A\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStorage(t)
			if err := os.WriteFile(store.Path(july), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := store.Load(july)
			if !errors.Is(err, ErrIOFailure) {
				t.Errorf("Load() error = %v, want ErrIOFailure", err)
			}
		})
	}
}

func TestAppend_Unwritable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission checks do not apply")
	}

	store := newTestStorage(t)
	if err := os.Chmod(store.DataDir(), 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(store.DataDir(), 0755)

	err := store.Append(july, quake.DefaultHeader, [][]string{{"a", "b", "c", "d", "e", "f"}})
	if !errors.Is(err, ErrIOFailure) {
		t.Errorf("Append() error = %v, want ErrIOFailure", err)
	}
}

func TestCreate(t *testing.T) {
	store := newTestStorage(t)

	created, err := store.Create(july, quake.DefaultHeader)
	if err != nil || !created {
		t.Fatalf("Create() = %v, %v; want true, nil", created, err)
	}

	created, err = store.Create(july, quake.DefaultHeader)
	if err != nil || created {
		t.Errorf("second Create() = %v, %v; want false, nil", created, err)
	}

	p, err := store.Load(july)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Exists || len(p.Rows) != 0 || len(p.Header) != len(quake.DefaultHeader) {
		t.Errorf("expected header-only partition, got %+v", p)
	}
}

func TestList(t *testing.T) {
	store := newTestStorage(t)

	for _, key := range []quake.PartitionKey{
		{Year: 2025, Month: time.August},
		{Year: 2024, Month: time.December},
		july,
	} {
		if _, err := store.Create(key, quake.DefaultHeader); err != nil {
			t.Fatal(err)
		}
	}
	// Files that only look similar are ignored
	for _, name := range []string{"phivolcs_earthquakes_may.csv", "phivolcs_earthquakes_complete_20250801_1200.csv", "scrape_log.txt"} {
		if err := os.WriteFile(filepath.Join(store.DataDir(), name), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}

	want := []string{"2024_12", "2025_07", "2025_08"}
	if len(keys) != len(want) {
		t.Fatalf("List() returned %v, want %v", keys, want)
	}
	for i, key := range keys {
		if key.String() != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, key, want[i])
		}
	}
}

func TestNew_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := New("~/quakes", "")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	if store.DataDir() != filepath.Join(home, "quakes") {
		t.Errorf("DataDir() = %q, want %q", store.DataDir(), filepath.Join(home, "quakes"))
	}
}
