// Package storage provides CSV persistence for monthly earthquake partitions.
//
// Each partition is one file named <prefix>_YYYY_MM.csv in the data directory, holding
// a header row followed by records in the order they were first observed. Partitions
// are append-only: new rows are written to a temp file together with the existing
// bytes and renamed into place, so an interrupted run never leaves a half-written file.
package storage
