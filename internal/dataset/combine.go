package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/storage"
)

// ColumnSource names the partition file an exported row came from
const ColumnSource = "Source_File"

// Entry is one record of the combined dataset with the partition file it came from
type Entry struct {
	Record *quake.Record
	Source string
}

// Combined is the deduplicated content of every partition, newest first
type Combined struct {
	Entries    []Entry `json:"-" yaml:"-"`
	Read       int     `json:"read" yaml:"read"`
	Invalid    int     `json:"invalid" yaml:"invalid"`
	Duplicates int     `json:"duplicates" yaml:"duplicates"`
	Partitions int     `json:"partitions" yaml:"partitions"`
}

// Records returns the combined records without their sources
func (c *Combined) Records() []*quake.Record {
	out := make([]*quake.Record, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Record
	}
	return out
}

type eventKey struct {
	at        int64
	latitude  float64
	longitude float64
	magnitude float64
}

// Combine reads all partitions into one dataset. Rows that do not validate (for
// example lacking a numeric latitude, longitude or magnitude) are dropped, as are
// repeats of the same time, position and magnitude; the first occurrence wins.
func Combine(store *storage.Storage) (*Combined, error) {
	keys, err := store.List()
	if err != nil {
		return nil, err
	}

	combined := &Combined{
		Entries:    make([]Entry, 0),
		Partitions: len(keys),
	}
	seen := make(map[eventKey]bool)

	for _, key := range keys {
		p, err := store.Load(key)
		if err != nil {
			return nil, err
		}
		columns := columnIndex(p.Header)
		source := filepath.Base(p.Path)

		for _, row := range p.Rows {
			combined.Read++

			rec, err := quake.NewRecord(quake.Row{Cells: pick(row, columns), Header: quake.DefaultHeader})
			if err != nil {
				combined.Invalid++
				continue
			}

			k := eventKey{
				at:        rec.OccurredAt.Unix(),
				latitude:  rec.Latitude,
				longitude: rec.Longitude,
				magnitude: rec.Magnitude,
			}
			if seen[k] {
				combined.Duplicates++
				continue
			}
			seen[k] = true
			combined.Entries = append(combined.Entries, Entry{Record: rec, Source: source})
		}
	}

	sort.SliceStable(combined.Entries, func(i, j int) bool {
		return combined.Entries[i].Record.OccurredAt.After(combined.Entries[j].Record.OccurredAt)
	})

	return combined, nil
}

// OutputName returns the default file name of a combined export
func OutputName(prefix string, now time.Time, compress bool) string {
	if prefix == "" {
		prefix = quake.DefaultFilePrefix
	}
	name := fmt.Sprintf("%s_complete_%s.csv", prefix, now.In(quake.SourceLocation).Format("20060102_1504"))
	if compress {
		name += ".zst"
	}
	return name
}

// WriteCSV writes entries with the default header plus a Source_File column.
// With compress set the output is a zstd stream.
func WriteCSV(w io.Writer, entries []Entry, compress bool) error {
	if !compress {
		return writeRows(w, entries)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	// Close releases the encoder's goroutines, so it runs on the error path too
	err = writeRows(zw, entries)
	if closeErr := zw.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing zstd stream: %w", closeErr)
	}
	return err
}

func writeRows(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, quake.DefaultHeader...), ColumnSource)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, e := range entries {
		row := append(e.Record.Serialize(quake.DefaultHeader), e.Source)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}
