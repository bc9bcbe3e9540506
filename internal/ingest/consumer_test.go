package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
)

type fakeFetcher struct {
	mu         sync.Mutex
	probeFails int
	probes     int
	records    []Record
	next       int
	committed  []Record
	closed     bool
}

func (f *fakeFetcher) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probes <= f.probeFails {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (f *fakeFetcher) Fetch(ctx context.Context) (Record, error) {
	f.mu.Lock()
	if f.next < len(f.records) {
		rec := f.records[f.next]
		f.next++
		f.mu.Unlock()
		return rec, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return Record{}, ctx.Err()
}

func (f *fakeFetcher) Commit(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rec)
	return nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeStore struct {
	mu     sync.Mutex
	saved  []model.CatalogAction
	broken bool
}

func (s *fakeStore) SaveCatalogAction(_ context.Context, action model.CatalogAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return fmt.Errorf("store offline")
	}
	s.saved = append(s.saved, action)
	return nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (d *captureDispatcher) Publish(_ context.Context, ev event.Eventer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *captureDispatcher) Publisher() message.Publisher { return nil }

func (d *captureDispatcher) published() []event.Eventer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Eventer, len(d.events))
	copy(out, d.events)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func runUntil(t *testing.T, c *Consumer, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}

func TestConsumerPersistsExportsAndCommits(t *testing.T) {
	fetcher := &fakeFetcher{records: []Record{
		{Key: []byte("create"), Value: []byte(`{"action":"create","book_id":7,"author_id":3}`), Offset: 1},
	}}
	store := &fakeStore{}
	dispatcher := &captureDispatcher{}
	consumer := NewConsumer(fetcher, store, dispatcher, discardLogger(), 10*time.Millisecond)

	runUntil(t, consumer, func() bool { return fetcher.committedCount() == 1 })

	require.Equal(t, 1, store.savedCount())
	saved := store.saved[0]
	assert.Equal(t, "create", saved.Action)
	assert.Equal(t, int64(7), saved.BookID)
	assert.Equal(t, int64(3), saved.AuthorID)
	assert.False(t, saved.OccurredAt.IsZero())

	events := dispatcher.published()
	require.Len(t, events, 1)
	assert.Equal(t, registry.GroupStaff, events[0].GetGroup())
	assert.Equal(t, event.CatalogNotice, events[0].GetKind())
}

func TestConsumerRetriesProbeUntilBrokerIsReachable(t *testing.T) {
	fetcher := &fakeFetcher{
		probeFails: 3,
		records: []Record{
			{Key: []byte("update"), Value: []byte(`{"book_id":1,"author_id":1}`), Offset: 1},
		},
	}
	store := &fakeStore{}
	consumer := NewConsumer(fetcher, store, &captureDispatcher{}, discardLogger(), 5*time.Millisecond)

	runUntil(t, consumer, func() bool { return fetcher.committedCount() == 1 })

	fetcher.mu.Lock()
	probes := fetcher.probes
	fetcher.mu.Unlock()
	assert.GreaterOrEqual(t, probes, 4)
}

func TestConsumerTakesActionFromRecordKey(t *testing.T) {
	fetcher := &fakeFetcher{records: []Record{
		{Key: []byte("delete"), Value: []byte(`{"book_id":9,"author_id":2}`), Offset: 5},
	}}
	store := &fakeStore{}
	consumer := NewConsumer(fetcher, store, &captureDispatcher{}, discardLogger(), 10*time.Millisecond)

	runUntil(t, consumer, func() bool { return store.savedCount() == 1 })

	assert.Equal(t, "delete", store.saved[0].Action)
}

func TestConsumerCommitsMalformedRecordWithoutPersisting(t *testing.T) {
	fetcher := &fakeFetcher{records: []Record{
		{Key: []byte("create"), Value: []byte(`not json`), Offset: 1},
		{Value: []byte(`{"book_id":1,"author_id":1}`), Offset: 2},
		{Key: []byte("create"), Value: []byte(`{"action":"create","book_id":2,"author_id":2}`), Offset: 3},
	}}
	store := &fakeStore{}
	dispatcher := &captureDispatcher{}
	consumer := NewConsumer(fetcher, store, dispatcher, discardLogger(), 10*time.Millisecond)

	runUntil(t, consumer, func() bool { return fetcher.committedCount() == 3 })

	// Only the third record was valid: the first is not JSON, the second has
	// no action in either key or value. Both still advance the offset.
	require.Equal(t, 1, store.savedCount())
	assert.Equal(t, int64(2), store.saved[0].BookID)
	assert.Len(t, dispatcher.published(), 1)
}

func TestConsumerToleratesRedeliveredRecord(t *testing.T) {
	// At-least-once delivery: a crash between persist and commit replays
	// the record. The replay must process cleanly and only cost one benign
	// duplicate row.
	rec := Record{Key: []byte("create"), Value: []byte(`{"action":"create","book_id":7,"author_id":3}`), Offset: 1}
	fetcher := &fakeFetcher{records: []Record{rec, rec}}
	store := &fakeStore{}
	dispatcher := &captureDispatcher{}
	consumer := NewConsumer(fetcher, store, dispatcher, discardLogger(), 10*time.Millisecond)

	runUntil(t, consumer, func() bool { return fetcher.committedCount() == 2 })

	require.Equal(t, 2, store.savedCount())
	assert.Equal(t, store.saved[0].Action, store.saved[1].Action)
	assert.Equal(t, store.saved[0].BookID, store.saved[1].BookID)
	assert.Equal(t, store.saved[0].AuthorID, store.saved[1].AuthorID)
	assert.Len(t, dispatcher.published(), 2)
}

func TestConsumerContinuesWhenStoreFails(t *testing.T) {
	fetcher := &fakeFetcher{records: []Record{
		{Key: []byte("create"), Value: []byte(`{"action":"create","book_id":1,"author_id":1}`), Offset: 1},
	}}
	store := &fakeStore{broken: true}
	dispatcher := &captureDispatcher{}
	consumer := NewConsumer(fetcher, store, dispatcher, discardLogger(), 10*time.Millisecond)

	runUntil(t, consumer, func() bool { return fetcher.committedCount() == 1 })

	// The offset still advances and the notice is still exported.
	assert.Equal(t, 0, store.savedCount())
	assert.Len(t, dispatcher.published(), 1)
}

func TestConsumerStopsOnContextCancellation(t *testing.T) {
	fetcher := &fakeFetcher{}
	consumer := NewConsumer(fetcher, &fakeStore{}, &captureDispatcher{}, discardLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}
