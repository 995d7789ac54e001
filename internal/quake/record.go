package quake

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column names of a partition file, in the order new partitions are written.
const (
	ColumnDateTime  = "Date-Time"
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
	ColumnDepth     = "Depth"
	ColumnMagnitude = "Magnitude"
	ColumnLocation  = "Location"
)

// DefaultHeader is the header row of a newly created partition
var DefaultHeader = []string{
	ColumnDateTime,
	ColumnLatitude,
	ColumnLongitude,
	ColumnDepth,
	ColumnMagnitude,
	ColumnLocation,
}

// ErrMalformedRecord is returned when a row cannot be turned into a routable Record
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes why a row was rejected
type MalformedRecordError struct {
	Cells  []string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %q: %s", strings.Join(e.Cells, " | "), e.Reason)
}

// Is reports ErrMalformedRecord so callers can use errors.Is
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Row is one raw table row as produced by the fetcher
type Row struct {
	Cells  []string `json:"cells" yaml:"cells"`
	Header []string `json:"header,omitempty" yaml:"header,omitempty"` // names for Cells, may be shorter or empty
}

// Field is a named source value outside the six known columns
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Record represents one reported seismic event
type Record struct {
	Key        string    `json:"key" yaml:"key"`
	OccurredAt time.Time `json:"occurred_at" yaml:"occurred_at"`
	Magnitude  float64   `json:"magnitude" yaml:"magnitude"`
	Depth      float64   `json:"depth_km" yaml:"depth_km"`
	Latitude   float64   `json:"latitude" yaml:"latitude"`
	Longitude  float64   `json:"longitude" yaml:"longitude"`
	Location   string    `json:"location" yaml:"location"`
	RawFields  []Field   `json:"raw_fields,omitempty" yaml:"raw_fields,omitempty"`

	// values holds the normalized text of each known column as it is persisted
	values map[string]string
}

// NewRecord validates a raw row and builds a Record from it.
// The first six cells are read positionally in DefaultHeader order; any further
// cells become RawFields named after the row header (or "Column N").
func NewRecord(row Row) (*Record, error) {
	if len(row.Cells) < len(DefaultHeader) {
		return nil, &MalformedRecordError{
			Cells:  row.Cells,
			Reason: fmt.Sprintf("expected at least %d cells, got %d", len(DefaultHeader), len(row.Cells)),
		}
	}

	values := make(map[string]string, len(DefaultHeader))
	for i, col := range DefaultHeader {
		values[col] = Normalize(row.Cells[i])
	}

	occurredAt, err := ParseOccurredAt(values[ColumnDateTime])
	if err != nil {
		return nil, &MalformedRecordError{Cells: row.Cells, Reason: err.Error()}
	}

	rec := &Record{
		OccurredAt: occurredAt,
		Location:   values[ColumnLocation],
		values:     values,
	}

	numeric := []struct {
		column string
		dst    *float64
	}{
		{ColumnLatitude, &rec.Latitude},
		{ColumnLongitude, &rec.Longitude},
		{ColumnDepth, &rec.Depth},
		{ColumnMagnitude, &rec.Magnitude},
	}
	for _, n := range numeric {
		v, err := parseDecimal(values[n.column])
		if err != nil {
			return nil, &MalformedRecordError{
				Cells:  row.Cells,
				Reason: fmt.Sprintf("%s %q is not a number", n.column, values[n.column]),
			}
		}
		*n.dst = v
	}

	for i := len(DefaultHeader); i < len(row.Cells); i++ {
		name := fmt.Sprintf("Column %d", i+1)
		if i < len(row.Header) && strings.TrimSpace(row.Header[i]) != "" {
			name = Normalize(row.Header[i])
		}
		rec.RawFields = append(rec.RawFields, Field{Name: name, Value: row.Cells[i]})
	}

	rec.Key = GenerateKey(rec.Serialize(DefaultHeader))
	return rec, nil
}

// Value returns the persisted text for a column, if the record has one
func (r *Record) Value(column string) (string, bool) {
	if v, ok := r.values[column]; ok {
		return v, true
	}
	for _, f := range r.RawFields {
		if f.Name == column {
			return f.Value, true
		}
	}
	return "", false
}

// Serialize returns the record's values in the given header order.
// Columns the record does not carry are written empty.
func (r *Record) Serialize(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i], _ = r.Value(col)
	}
	return out
}

// GenerateKey creates a deterministic identity for a serialized row.
// Values are normalized first so stored and fetched rows compare alike.
func GenerateKey(values []string) string {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = Normalize(v)
	}
	h := sha1.New()
	h.Write([]byte(strings.Join(normalized, "\x1f")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

var dashReplacer = strings.NewReplacer("\u00a0", " ", "\u2013", "-", "\u2014", "-")

// Normalize collapses whitespace, converts NBSP and unicode dashes, and trims
func Normalize(s string) string {
	return strings.Join(strings.Fields(dashReplacer.Replace(s)), " ")
}

func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}
