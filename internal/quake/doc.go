// Package quake provides types and functions for PHIVOLCS earthquake records.
//
// The quake package turns raw table rows into validated records, routes each record to
// its monthly partition, and detects which fetched records are not yet stored. A record's
// identity is the normalized tuple of its serialized column values, hashed with SHA1 so
// the same row is recognized across runs without a synthetic ID.
package quake
