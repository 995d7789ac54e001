package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/storage"
)

// Band is a magnitude class with a half-open range [Min, Max)
type Band struct {
	Label   string  `json:"label" yaml:"label"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max,omitempty" yaml:"max,omitempty"` // 0 means unbounded
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// MagnitudeBands lists the classes used in summaries
var MagnitudeBands = []Band{
	{Label: "Micro", Min: math.Inf(-1), Max: 1},
	{Label: "Minor", Min: 1, Max: 3},
	{Label: "Light", Min: 3, Max: 5},
	{Label: "Moderate", Min: 5, Max: 7},
	{Label: "Strong", Min: 7},
}

// SourceCount is the number of records from one partition file
type SourceCount struct {
	Source string `json:"source" yaml:"source"`
	Count  int    `json:"count" yaml:"count"`
}

// Range is a closed numeric interval
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Summary describes a set of records
type Summary struct {
	Total     int           `json:"total" yaml:"total"`
	First     time.Time     `json:"first,omitempty" yaml:"first,omitempty"`
	Last      time.Time     `json:"last,omitempty" yaml:"last,omitempty"`
	Magnitude Range         `json:"magnitude" yaml:"magnitude"`
	Depth     Range         `json:"depth_km" yaml:"depth_km"`
	BySource  []SourceCount `json:"by_source,omitempty" yaml:"by_source,omitempty"`
	Bands     []Band        `json:"bands" yaml:"bands"`
}

// Summarize computes totals, ranges, per-source counts and magnitude bands
func Summarize(entries []Entry) *Summary {
	s := &Summary{
		Total: len(entries),
		Bands: make([]Band, len(MagnitudeBands)),
	}
	copy(s.Bands, MagnitudeBands)
	for i := range s.Bands {
		if math.IsInf(s.Bands[i].Min, -1) {
			s.Bands[i].Min = 0
		}
	}

	if len(entries) == 0 {
		return s
	}

	sources := make(map[string]int)
	for i, e := range entries {
		rec := e.Record
		if i == 0 {
			s.First, s.Last = rec.OccurredAt, rec.OccurredAt
			s.Magnitude = Range{Min: rec.Magnitude, Max: rec.Magnitude}
			s.Depth = Range{Min: rec.Depth, Max: rec.Depth}
		}
		if rec.OccurredAt.Before(s.First) {
			s.First = rec.OccurredAt
		}
		if rec.OccurredAt.After(s.Last) {
			s.Last = rec.OccurredAt
		}
		s.Magnitude.Min = math.Min(s.Magnitude.Min, rec.Magnitude)
		s.Magnitude.Max = math.Max(s.Magnitude.Max, rec.Magnitude)
		s.Depth.Min = math.Min(s.Depth.Min, rec.Depth)
		s.Depth.Max = math.Max(s.Depth.Max, rec.Depth)

		s.Bands[bandIndex(rec.Magnitude)].Count++
		if e.Source != "" {
			sources[e.Source]++
		}
	}

	for i := range s.Bands {
		s.Bands[i].Percent = math.Round(float64(s.Bands[i].Count)/float64(s.Total)*1000) / 10
	}

	for source, count := range sources {
		s.BySource = append(s.BySource, SourceCount{Source: source, Count: count})
	}
	sort.Slice(s.BySource, func(i, j int) bool {
		if s.BySource[i].Count != s.BySource[j].Count {
			return s.BySource[i].Count > s.BySource[j].Count
		}
		return s.BySource[i].Source < s.BySource[j].Source
	})

	return s
}

func bandIndex(magnitude float64) int {
	for i := len(MagnitudeBands) - 1; i >= 0; i-- {
		if magnitude >= MagnitudeBands[i].Min {
			return i
		}
	}
	return 0
}

// Stats describes one partition file
type Stats struct {
	Partition string    `json:"partition" yaml:"partition"`
	File      string    `json:"file" yaml:"file"`
	Exists    bool      `json:"exists" yaml:"exists"`
	Rows      int       `json:"rows" yaml:"rows"`
	Unparsed  int       `json:"unparsed,omitempty" yaml:"unparsed,omitempty"`
	First     time.Time `json:"first,omitempty" yaml:"first,omitempty"`
	Last      time.Time `json:"last,omitempty" yaml:"last,omitempty"`
}

// PartitionStats reports the row count and date range of one partition
func PartitionStats(store *storage.Storage, key quake.PartitionKey) (*Stats, error) {
	p, err := store.Load(key)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Partition: key.String(),
		File:      p.Path,
		Exists:    p.Exists,
		Rows:      len(p.Rows),
	}

	dateCol := 0
	if i, ok := columnIndex(p.Header)[quake.ColumnDateTime]; ok {
		dateCol = i
	}

	for _, row := range p.Rows {
		if dateCol >= len(row) {
			stats.Unparsed++
			continue
		}
		at, err := quake.ParseOccurredAt(row[dateCol])
		if err != nil {
			stats.Unparsed++
			continue
		}
		if stats.First.IsZero() || at.Before(stats.First) {
			stats.First = at
		}
		if stats.Last.IsZero() || at.After(stats.Last) {
			stats.Last = at
		}
	}

	return stats, nil
}
