// Package records is the external record store that calendar instances read
// their configuration, event catalog and time state from. A record is a
// named block of text with a short description; the store does not interpret
// the text.
package records

import (
	"context"
	"time"
)

// Record is one named text record.
type Record struct {
	Name        string    `json:"name"`
	Entry       string    `json:"entry"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository defines persistence operations for records.
type Repository interface {
	// Get returns the record with the given name, or nil if none exists.
	Get(ctx context.Context, name string) (*Record, error)

	// Upsert creates or replaces a record by name.
	Upsert(ctx context.Context, rec Record) error

	// List returns every record ordered by name.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error
}

// Record names used by a calendar instance are prefixed with the instance
// name: "<calendar>/Calendar Configuration" and so on.
const (
	KindConfiguration = "Calendar Configuration"
	KindEvents        = "Calendar Events"
	KindCurrentTime   = "Current Time"
)

// Name returns the record name for one of a calendar's records.
func Name(calendar, kind string) string {
	return calendar + "/" + kind
}
