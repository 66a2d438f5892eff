package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/gcparser/internal/extract"
)

// Record is one parsed item as it is persisted.
type Record struct {
	ID        string
	Kind      string // parser kind, e.g. "cache" or "seek"
	Key       string // waypoint, log id, ...
	Identity  string // account the record was fetched as; empty for anonymous fetches
	URL       string
	Fields    *extract.FieldMap
	FetchedAt time.Time
}

// NewRecord stamps a record with a fresh ID and the current time.
func NewRecord(kind, key, identity, url string, fields *extract.FieldMap) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Key:       key,
		Identity:  identity,
		URL:       url,
		Fields:    fields,
		FetchedAt: time.Now().UTC(),
	}
}

// Filter allows querying for specific Records.
type Filter struct {
	Kind   string
	Key    string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the filter's predicates. Limit and Offset
// are not considered.
func (f Filter) Match(r *Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Key != "" && r.Key != f.Key {
		return false
	}
	if f.Since != nil && r.FetchedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to records already in result order.
func (f Filter) Page(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying records. Query
// returns the newest records first.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
