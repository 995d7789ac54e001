// Package cli implements the command-line interface for phivolcs-events.
//
// The cli package provides the Cobra-based CLI with commands to sync the latest listing
// into the monthly partitions, inspect a partition, split a master CSV and combine all
// partitions. Settings come from flags, PHIVOLCS_* environment variables and an optional
// config file. Results are printed as text, JSON or YAML.
package cli
