package notifier

import (
	"context"

	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

// Notifier defines the interface for posting earthquake notifications
type Notifier interface {
	// Notify posts notifications for the given records
	Notify(ctx context.Context, records []*quake.Record) error
}

// FilterByMagnitude keeps records at or above min, preserving order, capped at max (0 means no cap)
func FilterByMagnitude(records []*quake.Record, min float64, max int) []*quake.Record {
	filtered := make([]*quake.Record, 0, len(records))
	for _, rec := range records {
		if rec.Magnitude >= min {
			filtered = append(filtered, rec)
		}
	}
	if max > 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}
