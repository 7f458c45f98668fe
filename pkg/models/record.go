// Package models provides data models for Comet records and record streams.
package models

import (
	"time"
)

// Record is a single extracted row, tagged with the entity it came from
// and the moment it was extracted. Data keys are flattened before the
// record is emitted; emission order matches upstream page order.
type Record struct {
	// Entity is the upstream entity name (e.g. "order_hdr")
	Entity string `json:"entity"`

	// Data holds the (flattened) row values
	Data map[string]interface{} `json:"data"`

	// ExtractedAt is the extraction timestamp
	ExtractedAt time.Time `json:"extracted_at"`

	// Metadata carries run-scoped context (run_id, page number, source URL)
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewRecord creates a record for an entity with the given data.
func NewRecord(entity string, data map[string]interface{}) *Record {
	return &Record{
		Entity:      entity,
		Data:        data,
		ExtractedAt: time.Now().UTC(),
	}
}

// SetMetadata attaches a metadata key-value to the record.
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
}

// RecordStream is a channel pair carrying extracted records and
// stream-level errors. Both channels are closed by the producer.
type RecordStream struct {
	Records <-chan *Record
	Errors  <-chan error
}
