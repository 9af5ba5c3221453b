package repository

import (
	"context"
	"fmt"
	"sync"

	"realtime_chat/internal/chat/domain"
)

type memoryDoc struct {
	value    interface{}
	revision int64
}

type memorySubscription struct {
	segs []string
	box  *mailbox
	last interface{}
}

// MemoryStore in-process DocumentStore
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*memoryDoc
	subs   map[int]*memorySubscription
	nextID int
}

// NewMemoryStore create an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: map[string]*memoryDoc{},
		subs: map[int]*memorySubscription{},
	}
}

// Read value at path
func (s *MemoryStore) Read(ctx context.Context, path string) (Document, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, &domain.StoreError{Op: "read", Path: path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[segs[0]]
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	v, ok := getIn(doc.value, segs[1:])
	if !ok {
		return Document{Revision: doc.revision}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return Document{Value: deepCopy(v), Revision: doc.revision}, nil
}

// Write overwrite the value at path
func (s *MemoryStore) Write(ctx context.Context, path string, value interface{}, opts ...WriteOption) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "write", Path: path, Err: err}
	}
	o := collectWriteOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	top := segs[0]
	doc, ok := s.docs[top]
	var current int64
	if ok {
		current = doc.revision
	}
	if o.checkRevision && o.revision != current {
		return fmt.Errorf("%s: %w (have %d, want %d)", path, domain.ErrRevisionConflict, current, o.revision)
	}
	if !ok {
		doc = &memoryDoc{}
		s.docs[top] = doc
	}

	doc.value = setIn(doc.value, segs[1:], deepCopy(value))
	doc.revision++

	// 在鎖內通知, 保證 commit 順序
	for _, sub := range s.subs {
		if sub.segs[0] != top || !overlaps(sub.segs, segs) {
			continue
		}
		v, exists := getIn(doc.value, sub.segs[1:])
		if sameValue(v, sub.last) {
			continue
		}
		sub.last = v
		sub.box.push(Snapshot{
			Path:     joinPath(sub.segs),
			Value:    deepCopy(v),
			Exists:   exists,
			Revision: doc.revision,
		})
	}
	return nil
}

// Observe current state of path, then every change to it
func (s *MemoryStore) Observe(ctx context.Context, path string) (<-chan Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	sub := &memorySubscription{segs: segs, box: newMailbox()}

	s.mu.Lock()
	var (
		v      interface{}
		exists bool
		rev    int64
	)
	if doc, ok := s.docs[segs[0]]; ok {
		v, exists = getIn(doc.value, segs[1:])
		rev = doc.revision
	}
	sub.last = v
	sub.box.push(Snapshot{Path: joinPath(segs), Value: deepCopy(v), Exists: exists, Revision: rev})
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	out := make(chan Snapshot)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()
		sub.box.pump(ctx, out)
	}()
	return out, nil
}
