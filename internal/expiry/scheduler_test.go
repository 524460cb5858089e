package expiry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/freshtrack/internal/model"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return model.Date(testNow).AddDate(0, 0, offset)
}

func newTestScheduler(store *memStore, n *fakeNotifier, opts Options, options ...Option) *Scheduler {
	options = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}, options...)
	return New(store, store, n, opts, options...)
}

func milkFixture() (*memStore, *fakeNotifier) {
	store := newMemStore()
	store.addUser(model.User{ID: 1, Username: "alice", Email: "a@b.com"})
	store.addItem(model.Item{ID: 10, UserID: 1, Name: "Milk", Quantity: 1, Category: "Dairy", ExpiryDate: day(2)})
	return store, &fakeNotifier{}
}

func TestRunPassNotifiesExpiringItem(t *testing.T) {
	store, n := milkFixture()
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 1, Sent: 1}, res)

	sent := n.deliveries()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@b.com", sent[0].address)
	assert.Contains(t, sent[0].subject, "Milk")
	assert.Contains(t, sent[0].body, "Milk")
	assert.Contains(t, sent[0].body, "Thursday, 12 March 2026")
	assert.True(t, store.item(10).Notified)
}

func TestRunPassSkipsNotifiedItem(t *testing.T) {
	store, n := milkFixture()
	store.addItem(model.Item{ID: 10, UserID: 1, Name: "Milk", Quantity: 1, ExpiryDate: day(2), Notified: true})
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, n.deliveries())
}

func TestRunPassIdempotent(t *testing.T) {
	store, n := milkFixture()
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	for i := 0; i < 3; i++ {
		_, err := s.RunPass(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, n.deliveries(), 1)
	assert.Equal(t, 1, store.marks)
}

func TestRunPassEmptyIsNoop(t *testing.T) {
	store := newMemStore()
	n := &fakeNotifier{}
	s := newTestScheduler(store, n, Options{})

	for i := 0; i < 2; i++ {
		res, err := s.RunPass(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	}
	assert.Empty(t, n.deliveries())
}

func TestRunPassRetriesFailedDelivery(t *testing.T) {
	store, n := milkFixture()
	n.setFail("a@b.com", true)
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err, "delivery failure must not fail the pass")
	assert.Equal(t, Result{Matched: 1, Failed: 1}, res)
	assert.False(t, store.item(10).Notified)

	n.setFail("a@b.com", false)

	res, err = s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 1, Sent: 1}, res)
	assert.True(t, store.item(10).Notified)
	assert.Equal(t, 1, store.marks)

	_, err = s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.deliveries(), 1)
}

func TestRunPassSkipsDeletedOwner(t *testing.T) {
	store := newMemStore()
	store.addItem(model.Item{ID: 10, UserID: 99, Name: "Milk", Quantity: 1, ExpiryDate: day(1)})
	n := &fakeNotifier{}
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 1, Skipped: 1}, res)
	assert.Empty(t, n.deliveries())
	assert.False(t, store.item(10).Notified)
}

func TestRunPassSkipsOwnerWithoutAddress(t *testing.T) {
	store := newMemStore()
	store.addUser(model.User{ID: 1, Username: "admin"})
	store.addItem(model.Item{ID: 10, UserID: 1, Name: "Milk", Quantity: 1, ExpiryDate: day(1)})
	n := &fakeNotifier{}
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 1, Skipped: 1}, res)
	assert.Empty(t, n.deliveries())
	assert.False(t, store.item(10).Notified)
}

func TestRunPassIsolatesItemFailures(t *testing.T) {
	store := newMemStore()
	store.addUser(model.User{ID: 1, Username: "alice", Email: "alice@example.com"})
	store.addUser(model.User{ID: 2, Username: "bob", Email: "bob@example.com"})
	store.addItem(model.Item{ID: 10, UserID: 1, Name: "Milk", Quantity: 1, ExpiryDate: day(0)})
	store.addItem(model.Item{ID: 11, UserID: 2, Name: "Eggs", Quantity: 6, ExpiryDate: day(1)})
	store.addItem(model.Item{ID: 12, UserID: 99, Name: "Cheese", Quantity: 1, ExpiryDate: day(2)})
	store.addItem(model.Item{ID: 13, UserID: 1, Name: "Paracetamol", Quantity: 1, ExpiryDate: day(3)})

	n := &fakeNotifier{}
	n.setFail("bob@example.com", true)
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 4, Sent: 2, Failed: 1, Skipped: 1}, res)

	assert.True(t, store.item(10).Notified)
	assert.False(t, store.item(11).Notified)
	assert.False(t, store.item(12).Notified)
	assert.True(t, store.item(13).Notified)
}

func TestRunPassStoreUnavailable(t *testing.T) {
	store, n := milkFixture()
	store.queryErr = errors.New("database is locked")
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	_, err := s.RunPass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.queryErr)
	assert.Empty(t, n.deliveries())
	assert.False(t, store.item(10).Notified)
}

func TestRunPassMarkFailureRedeliversNextPass(t *testing.T) {
	store, n := milkFixture()
	store.markErr = errors.New("disk I/O error")

	var logs bytes.Buffer
	s := newTestScheduler(store, n, Options{WindowDays: 3},
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res, err := s.RunPass(context.Background())
	require.NoError(t, err, "mark failure must not abort the pass")
	assert.Equal(t, Result{Matched: 1, Sent: 1, MarkFailed: 1}, res)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.False(t, store.item(10).Notified)

	// Delivery is at-least-once: the unrecorded send is repeated, then recorded.
	store.mu.Lock()
	store.markErr = nil
	store.mu.Unlock()

	res, err = s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 1, Sent: 1}, res)
	assert.Len(t, n.deliveries(), 2)
	assert.True(t, store.item(10).Notified)
}

func TestRunPassSendTimeout(t *testing.T) {
	store, n := milkFixture()
	n.block = make(chan struct{})
	n.ignoresCtx = true
	defer close(n.block)

	s := newTestScheduler(store, n, Options{WindowDays: 3, SendTimeout: 50 * time.Millisecond})

	start := time.Now()
	res, err := s.RunPass(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Result{Matched: 1, Failed: 1}, res)
	assert.False(t, store.item(10).Notified)
}

func TestWindow(t *testing.T) {
	s := newTestScheduler(newMemStore(), &fakeNotifier{}, Options{WindowDays: 3, ExpiredLookback: -1})
	start, end := s.Window(testNow)
	assert.Equal(t, day(0), start)
	assert.Equal(t, day(3), end)

	s = newTestScheduler(newMemStore(), &fakeNotifier{}, Options{WindowDays: 5, ExpiredLookback: 48 * time.Hour})
	start, end = s.Window(testNow)
	assert.Equal(t, day(-2), start)
	assert.Equal(t, day(5), end)

	s = newTestScheduler(newMemStore(), &fakeNotifier{}, Options{WindowDays: 3})
	start, end = s.Window(testNow)
	assert.True(t, start.IsZero())
	assert.Equal(t, day(3), end)
}

func TestRunPassWindowBounds(t *testing.T) {
	store := newMemStore()
	store.addUser(model.User{ID: 1, Username: "alice", Email: "a@b.com"})
	for id, offset := range map[int64]int{1: -2, 2: -1, 3: 0, 4: 3, 5: 4} {
		store.addItem(model.Item{ID: id, UserID: 1, Name: "item", Quantity: 1, ExpiryDate: day(offset)})
	}

	s := newTestScheduler(store, &fakeNotifier{}, Options{WindowDays: 3, ExpiredLookback: -1})
	_, err := s.RunPass(context.Background())
	require.NoError(t, err)

	assert.False(t, store.item(1).Notified)
	assert.False(t, store.item(2).Notified)
	assert.True(t, store.item(3).Notified)
	assert.True(t, store.item(4).Notified)
	assert.False(t, store.item(5).Notified)

	// A one-day lookback reaches yesterday only.
	s = newTestScheduler(store, &fakeNotifier{}, Options{WindowDays: 3, ExpiredLookback: 24 * time.Hour})
	_, err = s.RunPass(context.Background())
	require.NoError(t, err)

	assert.False(t, store.item(1).Notified)
	assert.True(t, store.item(2).Notified)

	// Without a limit, long-expired items are reported too.
	s = newTestScheduler(store, &fakeNotifier{}, Options{WindowDays: 3})
	_, err = s.RunPass(context.Background())
	require.NoError(t, err)

	assert.True(t, store.item(1).Notified)
	assert.False(t, store.item(5).Notified)
}

func TestRunPassSerializesConcurrentCalls(t *testing.T) {
	store, n := milkFixture()
	n.block = make(chan struct{})
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RunPass(context.Background())
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(n.block)
	wg.Wait()

	assert.Len(t, n.deliveries(), 1, "overlapping passes must not send duplicates")
	assert.Equal(t, 1, n.maxFlight)
}

func TestRunPassSharedLockHeld(t *testing.T) {
	store, n := milkFixture()
	s := newTestScheduler(store, n, Options{WindowDays: 3}, WithLocker(heldLocker{}))

	_, err := s.RunPass(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)
	assert.Empty(t, store.queries)
	assert.Empty(t, n.deliveries())
}

func TestRunPassCancelledWhileWaiting(t *testing.T) {
	store, n := milkFixture()
	n.block = make(chan struct{})
	s := newTestScheduler(store, n, Options{WindowDays: 3})

	go s.RunPass(context.Background())
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.RunPass(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(n.block)
}

func TestStartStop(t *testing.T) {
	store, n := milkFixture()
	s := newTestScheduler(store, n, Options{WindowDays: 3, Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.queries) >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	store.mu.Lock()
	queries := len(store.queries)
	store.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, queries, len(store.queries), "no passes after Stop")
	assert.Len(t, n.deliveries(), 1)
}
