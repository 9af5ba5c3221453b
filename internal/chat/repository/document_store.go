package repository

import (
	"context"
)

// ConsistencyMode how read-modify-write sequences guard their final write
type ConsistencyMode string

const (
	// LastWriteWins plain overwrite, a concurrent writer's update can be lost
	LastWriteWins ConsistencyMode = "last_write_wins"
	// Optimistic the write only lands if the document revision is unchanged
	// since the read, otherwise domain.ErrRevisionConflict. Not retried.
	Optimistic ConsistencyMode = "optimistic"
)

// ParseConsistencyMode map a config value to a mode, unknown values are LastWriteWins
func ParseConsistencyMode(s string) ConsistencyMode {
	if ConsistencyMode(s) == Optimistic {
		return Optimistic
	}
	return LastWriteWins
}

// Document value at a path plus the revision of its top-level document
type Document struct {
	Value    interface{}
	Revision int64
}

// Snapshot one observed state of a path
type Snapshot struct {
	Path     string
	Value    interface{}
	Exists   bool
	Revision int64
}

type writeOptions struct {
	checkRevision bool
	revision      int64
}

// WriteOption option of DocumentStore.Write
type WriteOption func(*writeOptions)

// IfRevision only write when the top-level document is still at rev,
// 0 means the document must not exist yet
func IfRevision(rev int64) WriteOption {
	return func(o *writeOptions) {
		o.checkRevision = true
		o.revision = rev
	}
}

func collectWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DocumentStore hierarchical JSON document store. Paths look like
// "/{userId}/conversations", the first segment names the top-level document
// that carries the revision. Values are JSON trees (map[string]interface{},
// []interface{}, string, float64, bool). Empty maps and lists are not stored.
type DocumentStore interface {
	// Read value at path, domain.ErrNotFound when absent
	Read(ctx context.Context, path string) (Document, error)
	// Write overwrite the value at path, nil removes it
	Write(ctx context.Context, path string, value interface{}, opts ...WriteOption) error
	// Observe current state of path first, then one snapshot per committed change,
	// in commit order. The channel closes when ctx is done.
	Observe(ctx context.Context, path string) (<-chan Snapshot, error)
}
