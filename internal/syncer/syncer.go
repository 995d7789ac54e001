package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/metrics"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/storage"
)

// Synchronizer merges fetched rows into the monthly partitions
type Synchronizer struct {
	store         *storage.Storage
	log           *logger.Logger
	metrics       *metrics.Recorder
	chronological bool
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithLogger sets the logger used for per-partition and skip messages
func WithLogger(l *logger.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l
	}
}

// WithMetrics records counts into m
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithChronological appends new records oldest first instead of in source order
func WithChronological(enabled bool) Option {
	return func(s *Synchronizer) {
		s.chronological = enabled
	}
}

// New creates a Synchronizer writing to store
func New(store *storage.Storage, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store: store,
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Skip is a candidate rejected as malformed
type Skip struct {
	Cells  []string `json:"cells" yaml:"cells"`
	Reason string   `json:"reason" yaml:"reason"`
}

// PartitionResult reports what happened to one partition
type PartitionResult struct {
	Partition  string `json:"partition" yaml:"partition"`
	File       string `json:"file" yaml:"file"`
	Appended   int    `json:"appended" yaml:"appended"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
	Created    bool   `json:"created" yaml:"created"`
}

// Result summarizes one Sync call
type Result struct {
	Candidates int               `json:"candidates" yaml:"candidates"`
	Appended   int               `json:"appended" yaml:"appended"`
	Duplicates int               `json:"duplicates" yaml:"duplicates"`
	Partitions []PartitionResult `json:"partitions" yaml:"partitions"`
	Skipped    []Skip            `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	NewRecords []*quake.Record   `json:"new_records" yaml:"new_records"`
}

// AppendedTo returns the number of rows appended to a partition ("YYYY_MM")
func (r *Result) AppendedTo(partition string) int {
	for _, p := range r.Partitions {
		if p.Partition == partition {
			return p.Appended
		}
	}
	return 0
}

// Created lists the partitions this run started
func (r *Result) Created() []string {
	var created []string
	for _, p := range r.Partitions {
		if p.Created {
			created = append(created, p.Partition)
		}
	}
	return created
}

// Sync validates candidates, routes each to the partition of its own month and
// appends the ones not already stored. Malformed candidates are skipped and
// reported. A partition that cannot be read or written aborts the run with
// storage.ErrIOFailure; partitions appended before the failure stay appended.
func (s *Synchronizer) Sync(ctx context.Context, candidates []quake.Row) (*Result, error) {
	result := &Result{
		Candidates: len(candidates),
		Partitions: make([]PartitionResult, 0),
		NewRecords: make([]*quake.Record, 0),
	}
	s.metrics.AddCandidates(len(candidates))

	records := make([]*quake.Record, 0, len(candidates))
	for _, row := range candidates {
		rec, err := quake.NewRecord(row)
		if err != nil {
			var malformed *quake.MalformedRecordError
			if !errors.As(err, &malformed) {
				return result, err
			}
			result.Skipped = append(result.Skipped, Skip{Cells: row.Cells, Reason: malformed.Reason})
			s.metrics.IncSkipped()
			s.log.Warn("Skipping malformed record", logger.Fields{
				"cells":  row.Cells,
				"reason": malformed.Reason,
			})
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return result, nil
	}

	if s.chronological {
		quake.SortChronological(records)
	}

	groups, keys := quake.GroupByPartition(records)
	appended := make(map[*quake.Record]bool)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pr, added, err := s.syncPartition(key, groups[key])
		if err != nil {
			s.log.Error("Partition sync failed", logger.Fields{
				"partition": key.String(),
				"file":      s.store.Path(key),
			}, err)
			return result, err
		}

		result.Partitions = append(result.Partitions, pr)
		result.Appended += pr.Appended
		result.Duplicates += pr.Duplicates
		for _, rec := range added {
			appended[rec] = true
		}
	}

	// Report new records in the order they were appended
	for _, rec := range records {
		if appended[rec] {
			result.NewRecords = append(result.NewRecords, rec)
		}
	}

	return result, nil
}

// syncPartition diffs records against the full content of one partition and appends the new ones
func (s *Synchronizer) syncPartition(key quake.PartitionKey, records []*quake.Record) (PartitionResult, []*quake.Record, error) {
	pr := PartitionResult{
		Partition: key.String(),
		File:      s.store.Path(key),
	}

	p, err := s.store.Load(key)
	if err != nil {
		return pr, nil, err
	}

	header := quake.DefaultHeader
	if len(p.Header) > 0 {
		header, err = quake.ResolveHeader(p.Header)
		if err != nil {
			return pr, nil, fmt.Errorf("%w: %s: %w", storage.ErrIOFailure, pr.File, err)
		}
	}

	diff := quake.Diff(p.Rows, header, records)
	pr.Duplicates = diff.Duplicates
	s.metrics.AddDuplicates(diff.Duplicates)

	if len(diff.NewRecords) == 0 {
		s.log.Debug("No new records for partition", logger.Fields{
			"partition":  pr.Partition,
			"duplicates": pr.Duplicates,
		})
		return pr, nil, nil
	}

	rows := make([][]string, len(diff.NewRecords))
	for i, rec := range diff.NewRecords {
		rows[i] = rec.Serialize(header)
	}
	if err := s.store.Append(key, header, rows); err != nil {
		return pr, nil, err
	}

	pr.Appended = len(rows)
	pr.Created = len(p.Header) == 0
	s.metrics.AddAppended(pr.Partition, pr.Appended)
	if pr.Created {
		s.metrics.IncCreated()
	}

	s.log.Info("Partition updated", logger.Fields{
		"partition":  pr.Partition,
		"file":       pr.File,
		"appended":   pr.Appended,
		"duplicates": pr.Duplicates,
		"created":    pr.Created,
	})
	return pr, diff.NewRecords, nil
}

// StartPartition makes sure the partition for now exists, writing a header-only
// file when it does not. It reports whether a file was created.
func (s *Synchronizer) StartPartition(now time.Time) (bool, error) {
	key := quake.CurrentPartitionKey(now)

	created, err := s.store.Create(key, quake.DefaultHeader)
	if err != nil {
		return false, fmt.Errorf("starting partition %s: %w", key, err)
	}
	if created {
		s.metrics.IncCreated()
		s.log.Info("Started partition", logger.Fields{
			"partition": key.String(),
			"file":      s.store.Path(key),
		})
	}
	return created, nil
}
