package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeStore backs both the Repository and the Ledger pre-check with an
// in-memory event log and token map honoring the retention window.
type fakeStore struct {
	events   []*Event
	claims   map[string]time.Time
	window   time.Duration
	now      func() time.Time
	storeErr error
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		claims: make(map[string]time.Time),
		window: 24 * time.Hour,
		now:    now,
	}
}

func (f *fakeStore) StoreBatch(ctx context.Context, events []*Event, token string) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	if at, ok := f.claims[token]; ok && at.After(f.now().Add(-f.window)) {
		return ErrDuplicateRequest
	}
	f.events = append(f.events, events...)
	f.claims[token] = f.now()
	return nil
}

func (f *fakeStore) EventsBetween(ctx context.Context, from, to time.Time) ([]*Event, error) {
	var out []*Event
	for _, ev := range f.events {
		if !ev.CreatedAt.Before(from) && ev.CreatedAt.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) Exists(ctx context.Context, token string) (bool, error) {
	at, ok := f.claims[token]
	return ok && at.After(f.now().Add(-f.window)), nil
}

type staticHasher struct{}

func (staticHasher) Hash(ip string) string {
	if ip == "" {
		return ""
	}
	return "hash-of-" + ip
}

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time          { return c.current }
func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeStore, *testClock) {
	t.Helper()
	clock := &testClock{current: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := newFakeStore(clock.Now)
	svc := NewService(store, store, staticHasher{}, zap.NewNop())
	svc.now = clock.Now
	return svc, store, clock
}

func viewBatch(n int) []*Event {
	postID := "p1"
	batch := make([]*Event, n)
	for i := range batch {
		batch[i] = &Event{
			EventType: EventTypePostView,
			PostID:    &postID,
			SessionID: "s1",
		}
	}
	return batch
}

func TestIngestBatchStoresEvents(t *testing.T) {
	svc, store, clock := newTestService(t)

	stored, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(3), "203.0.113.7")
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if stored != 3 {
		t.Errorf("stored = %d, want 3", stored)
	}
	if len(store.events) != 3 {
		t.Fatalf("event store holds %d events, want 3", len(store.events))
	}

	for _, ev := range store.events {
		if !ev.CreatedAt.Equal(clock.Now()) {
			t.Errorf("event timestamp = %v, want server time %v", ev.CreatedAt, clock.Now())
		}
		if ev.Metadata.IPHash != "hash-of-203.0.113.7" {
			t.Errorf("ip hash = %q, want derived hash", ev.Metadata.IPHash)
		}
		if ev.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("event id was not assigned")
		}
	}
}

func TestIngestBatchDiscardsClientTimestamp(t *testing.T) {
	svc, store, clock := newTestService(t)

	batch := viewBatch(1)
	batch[0].CreatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.IngestBatch(context.Background(), "tok-1", batch, ""); err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if !store.events[0].CreatedAt.Equal(clock.Now()) {
		t.Errorf("client timestamp survived: %v", store.events[0].CreatedAt)
	}
}

func TestIngestBatchDuplicateToken(t *testing.T) {
	svc, store, _ := newTestService(t)

	if _, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(2), ""); err != nil {
		t.Fatalf("first IngestBatch: %v", err)
	}

	_, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(2), "")
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second IngestBatch err = %v, want ErrDuplicateRequest", err)
	}
	if len(store.events) != 2 {
		t.Errorf("event store holds %d events, want exactly one applied batch (2)", len(store.events))
	}
}

func TestIngestBatchTokenExpiry(t *testing.T) {
	svc, store, clock := newTestService(t)

	if _, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(1), ""); err != nil {
		t.Fatalf("first IngestBatch: %v", err)
	}

	clock.Advance(25 * time.Hour)

	stored, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(1), "")
	if err != nil {
		t.Fatalf("resubmission after expiry: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want 1", stored)
	}
	if len(store.events) != 2 {
		t.Errorf("event store holds %d events, want 2", len(store.events))
	}
}

func TestIngestBatchDistinctTokensNoContentDedup(t *testing.T) {
	svc, store, _ := newTestService(t)

	if _, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(1), ""); err != nil {
		t.Fatalf("first IngestBatch: %v", err)
	}
	if _, err := svc.IngestBatch(context.Background(), "tok-2", viewBatch(1), ""); err != nil {
		t.Fatalf("second IngestBatch: %v", err)
	}

	if len(store.events) != 2 {
		t.Errorf("event store holds %d events, want 2 (no cross-token dedup)", len(store.events))
	}
}

func TestIngestBatchValidation(t *testing.T) {
	cases := []struct {
		name    string
		token   string
		batch   []*Event
		wantErr error
	}{
		{
			name:    "missing token",
			token:   "",
			batch:   viewBatch(1),
			wantErr: ErrMissingToken,
		},
		{
			name:    "empty batch",
			token:   "tok-1",
			batch:   nil,
			wantErr: ErrEmptyBatch,
		},
		{
			name:    "post view without post id",
			token:   "tok-1",
			batch:   []*Event{{EventType: EventTypePostView, SessionID: "s1"}},
			wantErr: ErrMissingPostID,
		},
		{
			name:    "unknown type",
			token:   "tok-1",
			batch:   []*Event{{EventType: "bogus", SessionID: "s1"}},
			wantErr: ErrInvalidEventType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)

			_, err := svc.IngestBatch(context.Background(), tc.token, tc.batch, "")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if len(store.events) != 0 {
				t.Errorf("rejected batch reached the store: %d events", len(store.events))
			}
		})
	}
}

func TestIngestBatchStorageFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.storeErr = ErrStorageFailure

	_, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(1), "")
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("err = %v, want ErrStorageFailure", err)
	}

	// Nothing committed, so the same token must be retryable.
	store.storeErr = nil
	if _, err := svc.IngestBatch(context.Background(), "tok-1", viewBatch(1), ""); err != nil {
		t.Fatalf("retry after storage failure: %v", err)
	}
}
