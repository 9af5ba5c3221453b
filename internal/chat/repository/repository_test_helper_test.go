package repository

import (
	"context"
	"sync"
)

// barrierStore holds every Read until n readers arrived, so concurrent
// read-modify-writes start from the same snapshot
type barrierStore struct {
	DocumentStore
	wg sync.WaitGroup
}

func newBarrierStore(inner DocumentStore, n int) *barrierStore {
	b := &barrierStore{DocumentStore: inner}
	b.wg.Add(n)
	return b
}

func (b *barrierStore) Read(ctx context.Context, path string) (Document, error) {
	doc, err := b.DocumentStore.Read(ctx, path)
	b.wg.Done()
	b.wg.Wait()
	return doc, err
}
