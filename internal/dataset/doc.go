// Package dataset maintains the partitioned earthquake dataset as a whole.
//
// Split loads a master CSV into the monthly partitions through the synchronizer.
// Combine merges every partition into one deduplicated, newest-first dataset that
// WriteCSV can export (optionally zstd-compressed). Summarize and PartitionStats
// report counts, ranges and magnitude bands.
package dataset
