package quake

import (
	"sort"
)

// DiffResult contains the candidates not yet present in a partition
type DiffResult struct {
	NewRecords []*Record
	Duplicates int
}

// KeySet builds the identity set of stored rows
func KeySet(rows [][]string) map[string]bool {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[GenerateKey(row)] = true
	}
	return seen
}

// Diff compares candidates against every stored row of a partition and returns the
// new ones in candidate order. Identity is computed in the partition's header order.
// Repeats inside the candidate batch are dropped after their first occurrence.
func Diff(existing [][]string, header []string, candidates []*Record) *DiffResult {
	result := &DiffResult{
		NewRecords: make([]*Record, 0),
	}

	seen := KeySet(existing)
	for _, rec := range candidates {
		key := GenerateKey(rec.Serialize(header))
		if seen[key] {
			result.Duplicates++
			continue
		}
		seen[key] = true
		result.NewRecords = append(result.NewRecords, rec)
	}

	return result
}

// SortChronological orders records by occurrence time, keeping source order for ties
func SortChronological(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt.Before(records[j].OccurredAt)
	})
}

// GroupByPartition splits records by partition, preserving order inside each group.
// Keys are returned oldest first.
func GroupByPartition(records []*Record) (map[PartitionKey][]*Record, []PartitionKey) {
	groups := make(map[PartitionKey][]*Record)
	keys := make([]PartitionKey, 0)
	for _, rec := range records {
		key := PartitionKeyFor(rec)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], rec)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Before(keys[j])
	})
	return groups, keys
}
