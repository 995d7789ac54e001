package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortBySource    SortOrder = "source"
	SortByTime      SortOrder = "time"
	SortByMagnitude SortOrder = "magnitude"
)

// ParseSortOrder validates a --sort value
func ParseSortOrder(s string) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortBySource, SortByTime, SortByMagnitude:
		return order, nil
	case "":
		return SortBySource, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'source', 'time' or 'magnitude')", s)
	}
}

// sortRecords sorts a slice of records based on the specified sort order.
// Source order is the order the listing printed them in and is left untouched.
func sortRecords(records []*quake.Record, sortOrder SortOrder) {
	switch sortOrder {
	case SortByTime:
		sort.SliceStable(records, func(i, j int) bool {
			return compareByTime(records[i], records[j])
		})
	case SortByMagnitude:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].Magnitude != records[j].Magnitude {
				return records[i].Magnitude > records[j].Magnitude
			}
			// If magnitudes are equal, sort by time
			return compareByTime(records[i], records[j])
		})
	}
}

// compareByTime returns true if record i occurred before record j.
// Simultaneous records are ordered by location so output is deterministic.
func compareByTime(i, j *quake.Record) bool {
	if !i.OccurredAt.Equal(j.OccurredAt) {
		return i.OccurredAt.Before(j.OccurredAt)
	}
	return strings.ToLower(i.Location) < strings.ToLower(j.Location)
}
