package repository

import (
	"context"
	"errors"

	"realtime_chat/internal/chat/domain"
)

// readList read the list at path; found is false when the path is absent, the
// revision is still returned for a following conditional write
func readList(ctx context.Context, store DocumentStore, path string) (list []interface{}, revision int64, found bool, err error) {
	doc, err := store.Read(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, doc.Revision, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	return asList(doc.Value), doc.Revision, true, nil
}

// guard write options of a read-modify-write that read revision
func guard(mode ConsistencyMode, revision int64) []WriteOption {
	if mode == Optimistic {
		return []WriteOption{IfRevision(revision)}
	}
	return nil
}
