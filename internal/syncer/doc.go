// Package syncer incrementally merges scraped earthquake rows into monthly CSV partitions.
//
// Every candidate is routed by its own occurrence month, compared against the whole
// target partition and appended only when it is not already there, so running the
// same fetch twice never duplicates a row and late reports land in their historical
// month. Existing rows are never rewritten.
package syncer
