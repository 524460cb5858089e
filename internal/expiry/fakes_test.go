package expiry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/erazemk/freshtrack/internal/lock"
	"github.com/erazemk/freshtrack/internal/model"
)

// memStore is an in-memory ItemStore and UserStore.
type memStore struct {
	mu       sync.Mutex
	items    map[int64]*model.Item
	users    map[int64]*model.User
	queryErr error
	markErr  error
	queries  [][2]time.Time
	marks    int
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]*model.Item{}, users: map[int64]*model.User{}}
}

func (m *memStore) addUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

func (m *memStore) addItem(i model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[i.ID] = &i
}

func (m *memStore) item(id int64) model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memStore) FindExpiringUnnotified(ctx context.Context, start, end time.Time) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, [2]time.Time{start, end})
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	lo, hi := model.FormatDate(start), model.FormatDate(end)
	var out []model.Item
	for _, item := range m.items {
		d := model.FormatDate(item.ExpiryDate)
		if !item.Notified && d >= lo && d <= hi {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) MarkNotified(ctx context.Context, itemID int64, expiry time.Time, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.markErr != nil {
		return m.markErr
	}
	if item, ok := m.items[itemID]; ok && !item.Notified && item.ExpiryDate.Equal(expiry) {
		item.Notified = true
		m.marks++
	}
	return nil
}

func (m *memStore) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

type delivery struct {
	address, subject, body string
}

// fakeNotifier records deliveries and can fail or block per address.
type fakeNotifier struct {
	mu         sync.Mutex
	sent       []delivery
	failFor    map[string]bool
	block      chan struct{}
	inFlight   int
	maxFlight  int
	ignoresCtx bool
	// onSend runs during each delivery, before it reports success.
	onSend func()
}

var errTransport = errors.New("smtp: connection refused")

func (n *fakeNotifier) Send(ctx context.Context, address, subject, body string) error {
	n.mu.Lock()
	n.inFlight++
	if n.inFlight > n.maxFlight {
		n.maxFlight = n.inFlight
	}
	block, fail, onSend := n.block, n.failFor[address], n.onSend
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inFlight--
		n.mu.Unlock()
	}()

	if block != nil {
		if n.ignoresCtx {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if onSend != nil {
		onSend()
	}

	if fail {
		return errTransport
	}

	n.mu.Lock()
	n.sent = append(n.sent, delivery{address, subject, body})
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) deliveries() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.sent...)
}

func (n *fakeNotifier) setFail(address string, fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor == nil {
		n.failFor = map[string]bool{}
	}
	n.failFor[address] = fail
}

// heldLocker is a shared lock that another process always holds.
type heldLocker struct{}

func (heldLocker) TryLock(ctx context.Context) (func(), error) {
	return nil, lock.ErrNotAcquired
}
