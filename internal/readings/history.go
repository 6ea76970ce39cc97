package readings

import (
	"context"
	"time"
)

// Entry represents a single recorded reading change.
//
// Each entry stores one reading's new value at the time the change was
// observed. The trail survives restarts and gives the REST API a local
// history even when the time-series database is unavailable.
type Entry struct {
	// ID is the unique identifier for the history row.
	ID string `json:"id"`

	// DeviceID is the unique identifier of the mirrored device.
	DeviceID string `json:"device_id"`

	// Reading is the reading name (power, volume, station, ...).
	Reading string `json:"reading"`

	// Value is the value the reading changed to.
	Value string `json:"value"`

	// Source labels what caused the change (poll, event, command, discovery).
	Source string `json:"source"`

	// RecordedAt is the timestamp of the change (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryRepository stores and retrieves reading change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record records one reading change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - reading: Reading name
	//   - value: New value
	//   - source: Origin of the change (poll, event, command, discovery)
	//   - at: Observation time (zero means now)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, deviceID, reading, value, source string, at time.Time) error

	// History returns recent changes for one reading, ordered newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - reading: Reading name
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []Entry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	History(ctx context.Context, deviceID, reading string, limit int) ([]Entry, error)

	// Prune deletes history entries older than the given duration.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - olderThan: Duration to retain
	//
	// Returns:
	//   - int64: Number of rows deleted
	//   - error: nil on success, otherwise the underlying database error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Recorder returns a store subscriber that persists every changed reading
// in a change set. Persistence failures are logged and skipped so one bad
// write never stalls the notifier.
func Recorder(ctx context.Context, repo HistoryRepository, logger Logger) func(ChangeSet) {
	return func(cs ChangeSet) {
		for name, value := range cs.Changed {
			if err := repo.Record(ctx, cs.DeviceID, name, value, cs.Source, cs.At); err != nil {
				if logger != nil {
					logger.Warn("recording reading history failed",
						"reading", name, "error", err)
				}
			}
		}
	}
}
