package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/syncer"
)

// ErrNoDateColumn is returned when a master CSV has no column whose name starts with "date"
var ErrNoDateColumn = errors.New("no date-like column")

// SplitResult reports how a master CSV was partitioned
type SplitResult struct {
	Rows      int            `json:"rows" yaml:"rows"`
	Unparsed  int            `json:"unparsed" yaml:"unparsed"`
	OtherYear int            `json:"other_year" yaml:"other_year"`
	Sync      *syncer.Result `json:"sync" yaml:"sync"`
}

// Split partitions a master CSV into the monthly files by feeding its rows through
// the synchronizer, so rows already stored are never written twice. Rows whose date
// does not parse are dropped. A non-zero year keeps only rows from that year.
func Split(ctx context.Context, r io.Reader, s *syncer.Synchronizer, year int) (*SplitResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading master CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading master CSV: empty file")
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	columns := columnIndex(header)
	if _, ok := columns[quake.ColumnDateTime]; !ok {
		for i, name := range header {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "date") {
				columns[quake.ColumnDateTime] = i
				break
			}
		}
	}
	if _, ok := columns[quake.ColumnDateTime]; !ok {
		return nil, fmt.Errorf("%w in columns %q", ErrNoDateColumn, header)
	}

	type dated struct {
		at  time.Time
		row quake.Row
	}

	result := &SplitResult{Rows: len(records) - 1}
	kept := make([]dated, 0, len(records)-1)
	for _, rec := range records[1:] {
		cells := pick(rec, columns)

		at, err := quake.ParseOccurredAt(cells[0])
		if err != nil {
			result.Unparsed++
			continue
		}
		if year != 0 && at.Year() != year {
			result.OtherYear++
			continue
		}
		kept = append(kept, dated{at: at, row: quake.Row{Cells: cells, Header: quake.DefaultHeader}})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].at.Before(kept[j].at)
	})

	rows := make([]quake.Row, len(kept))
	for i, k := range kept {
		rows[i] = k.row
	}

	syncResult, err := s.Sync(ctx, rows)
	result.Sync = syncResult
	if err != nil {
		return result, err
	}
	return result, nil
}

// columnIndex maps the known column names present in header to their positions
func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(quake.DefaultHeader))
	for i, name := range header {
		col, ok := quake.CanonicalColumn(name)
		if !ok {
			continue
		}
		if _, seen := index[col]; !seen {
			index[col] = i
		}
	}
	return index
}

// pick returns a row's known columns in DefaultHeader order; absent columns are empty
func pick(row []string, columns map[string]int) []string {
	cells := make([]string, len(quake.DefaultHeader))
	for i, col := range quake.DefaultHeader {
		if idx, ok := columns[col]; ok && idx < len(row) {
			cells[i] = row[idx]
		}
	}
	return cells
}
