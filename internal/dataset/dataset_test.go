package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/storage"
	"github.com/pfrederiksen/phivolcs-events/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerLine = "Date-Time,Latitude,Longitude,Depth,Magnitude,Location\n"

var (
	june = quake.PartitionKey{Year: 2025, Month: time.June}
	july = quake.PartitionKey{Year: 2025, Month: time.July}
)

func newStore(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.New(t.TempDir(), "")
	require.NoError(t, err)
	return store
}

func newSyncer(store *storage.Storage) *syncer.Synchronizer {
	return syncer.New(store, syncer.WithLogger(logger.New(logger.LevelError, io.Discard)))
}

func writePartition(t *testing.T, store *storage.Storage, key quake.PartitionKey, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(store.Path(key), []byte(content), 0644))
}

func readPartition(t *testing.T, store *storage.Storage, key quake.PartitionKey) string {
	t.Helper()
	data, err := os.ReadFile(store.Path(key))
	require.NoError(t, err)
	return string(data)
}

const master = `Location,Magnitude,Date - Time,Depth,Latitude,Longitude,Bulletin
Location B,3.2,2025-07-15 10:10,5,10.1,120.1,No. 2
Location A,4.1,2025-07-15 10:00,10,10.0,120.0,No. 1
Location Old,2.0,2024-12-31 23:59,3,9.0,125.0,No. 0
Location Bad,2.0,sometime,3,9.0,125.0,
Location J,2.5,20 June 2025 - 08:00 AM,7,11.0,124.0,No. 3
`

func TestSplit(t *testing.T) {
	store := newStore(t)

	result, err := Split(context.Background(), strings.NewReader(master), newSyncer(store), 2025)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, 1, result.Unparsed)
	assert.Equal(t, 1, result.OtherYear)
	assert.Equal(t, 3, result.Sync.Appended)

	assert.Equal(t, headerLine+"20 June 2025 - 08:00 AM,11.0,124.0,7,2.5,Location J\n", readPartition(t, store, june))
	assert.Equal(t, headerLine+
		"2025-07-15 10:00,10.0,120.0,10,4.1,Location A\n"+
		"2025-07-15 10:10,10.1,120.1,5,3.2,Location B\n",
		readPartition(t, store, july), "rows are written oldest first in the known column order")

	exists, err := store.Exists(quake.PartitionKey{Year: 2024, Month: time.December})
	require.NoError(t, err)
	assert.False(t, exists, "rows outside the selected year are not written")

	again, err := Split(context.Background(), strings.NewReader(master), newSyncer(store), 2025)
	require.NoError(t, err)
	assert.Zero(t, again.Sync.Appended, "splitting the same master twice appends nothing")
}

func TestSplit_AllYears(t *testing.T) {
	store := newStore(t)

	result, err := Split(context.Background(), strings.NewReader(master), newSyncer(store), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Sync.Appended)
	assert.Zero(t, result.OtherYear)
}

func TestSplit_NoDateColumn(t *testing.T) {
	_, err := Split(context.Background(), strings.NewReader("Location,Magnitude\nA,1.0\n"), newSyncer(newStore(t)), 0)
	assert.ErrorIs(t, err, ErrNoDateColumn)
}

func TestCombine(t *testing.T) {
	store := newStore(t)
	writePartition(t, store, june, headerLine+
		"20 June 2025 - 08:00 AM,11.0,124.0,7,2.5,Location J\n"+
		"2025-06-21 09:00,n/a,124.0,7,2.5,Location Bad\n")
	// Different column order and a repeat of the June event with other spacing
	writePartition(t, store, july,
		"Magnitude,Date-Time,Location,Depth,Latitude,Longitude\n"+
			"4.1,2025-07-15 10:00,Location A,10,10.0,120.0\n"+
			"3.2,2025-07-15 10:10,Location B,5,10.1,120.1\n"+
			"2.50,2025-06-20 08:00,Location  J,7,11.00,124.0\n")

	combined, err := Combine(store)
	require.NoError(t, err)

	assert.Equal(t, 2, combined.Partitions)
	assert.Equal(t, 5, combined.Read)
	assert.Equal(t, 1, combined.Invalid)
	assert.Equal(t, 1, combined.Duplicates)
	require.Len(t, combined.Entries, 3)

	locations := make([]string, len(combined.Entries))
	for i, e := range combined.Entries {
		locations[i] = e.Record.Location
	}
	assert.Equal(t, []string{"Location B", "Location A", "Location J"}, locations, "newest first")
	assert.Equal(t, "phivolcs_earthquakes_2025_06.csv", combined.Entries[2].Source, "first occurrence wins")
}

func TestWriteCSV(t *testing.T) {
	store := newStore(t)
	writePartition(t, store, july, headerLine+
		"2025-07-15 10:00,10.0,120.0,10,4.1,\"Location A, Batangas\"\n")

	combined, err := Combine(store)
	require.NoError(t, err)

	want := "Date-Time,Latitude,Longitude,Depth,Magnitude,Location,Source_File\n" +
		"2025-07-15 10:00,10.0,120.0,10,4.1,\"Location A, Batangas\",phivolcs_earthquakes_2025_07.csv\n"

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, combined.Entries, false))
		assert.Equal(t, want, buf.String())
	})

	t.Run("zstd", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, combined.Entries, true))

		dec, err := zstd.NewReader(&buf)
		require.NoError(t, err)
		defer dec.Close()

		data, err := io.ReadAll(dec)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	})
}

func TestOutputName(t *testing.T) {
	now := time.Date(2025, time.August, 1, 4, 30, 0, 0, time.UTC)

	assert.Equal(t, "phivolcs_earthquakes_complete_20250801_1230.csv", OutputName("", now, false))
	assert.Equal(t, "quakes_complete_20250801_1230.csv.zst", OutputName("quakes", now, true))
}

func TestSummarize(t *testing.T) {
	mk := func(date, depth, mag, source string) Entry {
		rec, err := quake.NewRecord(quake.Row{Cells: []string{date, "10.0", "120.0", depth, mag, "Somewhere"}})
		require.NoError(t, err)
		return Entry{Record: rec, Source: source}
	}

	entries := []Entry{
		mk("2025-07-15 10:00", "10", "4.1", "b.csv"),
		mk("2025-07-01 00:00", "2", "0.5", "b.csv"),
		mk("2025-06-10 12:00", "650", "7.0", "a.csv"),
		mk("2025-07-20 18:00", "33", "1.0", "b.csv"),
	}

	s := Summarize(entries)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, "2025-06-10 12:00", s.First.Format("2006-01-02 15:04"))
	assert.Equal(t, "2025-07-20 18:00", s.Last.Format("2006-01-02 15:04"))
	assert.Equal(t, Range{Min: 0.5, Max: 7.0}, s.Magnitude)
	assert.Equal(t, Range{Min: 2, Max: 650}, s.Depth)
	assert.Equal(t, []SourceCount{{"b.csv", 3}, {"a.csv", 1}}, s.BySource)

	counts := make(map[string]int)
	for _, b := range s.Bands {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{"Micro": 1, "Minor": 1, "Light": 1, "Moderate": 0, "Strong": 1}, counts)
	assert.Equal(t, 25.0, s.Bands[0].Percent)
	assert.Zero(t, s.Bands[0].Min, "unbounded lower edge is reported as zero")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.True(t, s.First.IsZero())
	assert.Len(t, s.Bands, len(MagnitudeBands))
}

func TestPartitionStats(t *testing.T) {
	store := newStore(t)
	writePartition(t, store, july, headerLine+
		"2025-07-15 10:10,10.1,120.1,5,3.2,Location B\n"+
		"2025-07-02 01:00,10.0,120.0,10,4.1,Location A\n"+
		"garbled,10.0,120.0,10,4.1,Location C\n")

	stats, err := PartitionStats(store, july)
	require.NoError(t, err)

	assert.True(t, stats.Exists)
	assert.Equal(t, "2025_07", stats.Partition)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.Unparsed)
	assert.Equal(t, 2, stats.First.Day())
	assert.Equal(t, 15, stats.Last.Day())

	missing, err := PartitionStats(store, june)
	require.NoError(t, err)
	assert.False(t, missing.Exists)
	assert.Zero(t, missing.Rows)
}

func TestCombine_VariantHeader(t *testing.T) {
	store := newStore(t)
	writePartition(t, store, july, "Date - Time,latitude,Longitude,Depth (km),Magnitude,Location\n"+
		"2025-07-15 10:00,10.0,120.0,10,4.1,Location A\n")

	combined, err := Combine(store)
	require.NoError(t, err)
	require.Len(t, combined.Entries, 1)
	assert.Zero(t, combined.Invalid)
	assert.Equal(t, 15, combined.Entries[0].Record.OccurredAt.Day())

	stats, err := PartitionStats(store, july)
	require.NoError(t, err)
	assert.Zero(t, stats.Unparsed)
	assert.Equal(t, 15, stats.First.Day())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteCSV_WriterError(t *testing.T) {
	store := newStore(t)
	writePartition(t, store, july, headerLine+"2025-07-15 10:00,10.0,120.0,10,4.1,Location A\n")

	combined, err := Combine(store)
	require.NoError(t, err)

	for _, compress := range []bool{false, true} {
		err := WriteCSV(failingWriter{}, combined.Entries, compress)
		assert.ErrorContains(t, err, "disk full", "compress=%v", compress)
	}
}
