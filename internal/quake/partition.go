package quake

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultFilePrefix names partition files as <prefix>_YYYY_MM.csv
const DefaultFilePrefix = "phivolcs_earthquakes"

// PartitionKey identifies one monthly partition
type PartitionKey struct {
	Year  int
	Month time.Month
}

// CurrentPartitionKey maps a reference time to the partition it falls in.
// The time is evaluated in SourceLocation so routing matches the listing's calendar.
func CurrentPartitionKey(ref time.Time) PartitionKey {
	local := ref.In(SourceLocation)
	return PartitionKey{Year: local.Year(), Month: local.Month()}
}

// PartitionKeyFor routes a record by its own occurrence time, never by scrape time
func PartitionKeyFor(r *Record) PartitionKey {
	return CurrentPartitionKey(r.OccurredAt)
}

// String returns the key as YYYY_MM
func (k PartitionKey) String() string {
	return fmt.Sprintf("%04d_%02d", k.Year, int(k.Month))
}

// FileName returns the partition file name for a prefix
func (k PartitionKey) FileName(prefix string) string {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return fmt.Sprintf("%s_%s.csv", prefix, k)
}

// Before reports whether k is an earlier month than other
func (k PartitionKey) Before(other PartitionKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

var partitionSuffix = regexp.MustCompile(`_(\d{4})_(\d{2})\.csv$`)

// ParsePartitionFileName extracts the key from a file name produced by FileName
func ParsePartitionFileName(name string) (PartitionKey, bool) {
	m := partitionSuffix.FindStringSubmatch(name)
	if m == nil {
		return PartitionKey{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return PartitionKey{}, false
	}
	return PartitionKey{Year: year, Month: time.Month(month)}, true
}
