// Package expiry warns users about pantry items that are about to expire.
//
// A pass selects every unnotified item whose expiry date lies in the warning
// window, notifies its owner, and marks the item notified once delivery
// succeeds. Items whose delivery fails keep notified unset and are picked up
// again by the next pass; there is no separate retry queue. Delivery is
// at-least-once: a crash or store failure between a successful send and the
// mark write produces a duplicate on the next pass.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/freshtrack/internal/lock"
	"github.com/erazemk/freshtrack/internal/model"
	"github.com/erazemk/freshtrack/internal/notify"
)

// ErrPassInProgress is returned when another process holds the pass lock.
var ErrPassInProgress = errors.New("expiry pass already in progress")

// ItemStore is the item persistence the scheduler needs.
type ItemStore interface {
	FindExpiringUnnotified(ctx context.Context, start, end time.Time) ([]model.Item, error)
	// MarkNotified must not flag the item if its expiry date no longer
	// matches the one that was alerted.
	MarkNotified(ctx context.Context, itemID int64, expiry time.Time, address string) error
}

// UserStore resolves item owners. FindUserByID returns nil, nil for users
// that no longer exist.
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Options tune the pass window and schedule.
type Options struct {
	// WindowDays is how many days ahead of today an expiry date triggers a warning.
	WindowDays int
	// Interval between scheduled passes.
	Interval time.Duration
	// SendTimeout bounds each delivery attempt.
	SendTimeout time.Duration
	// ExpiredLookback limits how far into the past the window reaches for
	// expired, never-notified items. Zero means no limit; a negative value
	// starts the window today.
	ExpiredLookback time.Duration
}

// Defaults.
const (
	DefaultWindowDays  = 3
	DefaultInterval    = time.Hour
	DefaultSendTimeout = 30 * time.Second
)

// markTimeout bounds the mark write, which runs even if the pass is cancelled.
const markTimeout = 10 * time.Second

// Result summarizes one pass.
type Result struct {
	Matched    int `json:"matched"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	MarkFailed int `json:"mark_failed"`
}

// Scheduler runs expiry passes on demand and on a fixed interval.
type Scheduler struct {
	items    ItemStore
	users    UserStore
	notifier notify.Notifier
	opts     Options

	guard  *lock.Local
	shared lock.Locker
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocker adds a lock shared with other processes. A pass that cannot take
// it fails with ErrPassInProgress.
func WithLocker(l lock.Locker) Option {
	return func(s *Scheduler) { s.shared = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New returns a stopped Scheduler. Zero options take the package defaults.
func New(items ItemStore, users UserStore, notifier notify.Notifier, opts Options, options ...Option) *Scheduler {
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	s := &Scheduler{
		items:    items,
		users:    users,
		notifier: notifier,
		opts:     opts,
		guard:    lock.NewLocal(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Window returns the calendar dates bounding the pass run at now, both
// inclusive. Without a lookback limit start is the zero time.
func (s *Scheduler) Window(now time.Time) (start, end time.Time) {
	switch lb := s.opts.ExpiredLookback; {
	case lb < 0:
		start = model.Date(now)
	case lb > 0:
		start = model.Date(now.Add(-lb))
	}
	end = model.Date(now).AddDate(0, 0, s.opts.WindowDays)
	return start, end
}

// RunPass runs one pass synchronously. Concurrent calls in this process are
// serialized. A store query failure aborts the pass before anything is sent;
// per-item failures are logged and counted but never abort it.
func (s *Scheduler) RunPass(ctx context.Context) (Result, error) {
	release, err := s.guard.Lock(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if s.shared != nil {
		releaseShared, err := s.shared.TryLock(ctx)
		if errors.Is(err, lock.ErrNotAcquired) {
			return Result{}, ErrPassInProgress
		}
		if err != nil {
			return Result{}, fmt.Errorf("acquiring pass lock: %w", err)
		}
		defer releaseShared()
	}

	began := time.Now()
	started := s.now()
	start, end := s.Window(started)

	items, err := s.items.FindExpiringUnnotified(ctx, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("finding expiring items: %w", err)
	}

	res := Result{Matched: len(items)}
	for i := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		switch s.notifyItem(ctx, &items[i], started) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		case outcomeSkipped:
			res.Skipped++
		case outcomeMarkFailed:
			res.Sent++
			res.MarkFailed++
		}
	}

	s.logger.Info("expiry pass complete",
		"window_start", model.FormatDate(start),
		"window_end", model.FormatDate(end),
		"matched", res.Matched,
		"sent", res.Sent,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"mark_failed", res.MarkFailed,
		"duration", time.Since(began).Round(time.Millisecond),
	)
	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeMarkFailed
)

func (s *Scheduler) notifyItem(ctx context.Context, item *model.Item, now time.Time) outcome {
	owner, err := s.users.FindUserByID(ctx, item.UserID)
	if err != nil {
		s.logger.Error("failed to resolve item owner", "item_id", item.ID, "user_id", item.UserID, "error", err)
		return outcomeFailed
	}
	if owner == nil {
		s.logger.Debug("skipping item without owner", "item_id", item.ID, "user_id", item.UserID)
		return outcomeSkipped
	}
	if owner.Email == "" {
		s.logger.Debug("skipping item whose owner has no address", "item_id", item.ID, "user_id", item.UserID)
		return outcomeSkipped
	}

	subject, body := composeMessage(item, owner, now)
	if err := s.send(ctx, owner.Email, subject, body); err != nil {
		s.logger.Error("failed to deliver expiry notification",
			"item_id", item.ID, "item", item.Name, "address", owner.Email, "error", err)
		return outcomeFailed
	}

	// The message is out; record it even if the pass is being cancelled.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	if err := s.items.MarkNotified(markCtx, item.ID, item.ExpiryDate, owner.Email); err != nil {
		s.logger.Warn("notification sent but not recorded, it will be sent again",
			"item_id", item.ID, "item", item.Name, "address", owner.Email, "error", err)
		return outcomeMarkFailed
	}
	return outcomeSent
}

// send delivers one message, giving up after SendTimeout even if the notifier
// ignores its context.
func (s *Scheduler) send(ctx context.Context, address, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- s.notifier.Send(ctx, address, subject, body)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("delivery abandoned: %w", ctx.Err())
	}
}

// Start runs a pass immediately and then every Interval until ctx is done or
// Stop is called. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("expiry scheduler started",
		"interval", s.opts.Interval,
		"window_days", s.opts.WindowDays,
		"expired_lookback", s.opts.ExpiredLookback,
	)
}

// Stop cancels the running loop, including an in-flight pass, and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info("expiry scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		s.scheduledPass(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) scheduledPass(ctx context.Context) {
	_, err := s.RunPass(ctx)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, ErrPassInProgress):
		s.logger.Info("expiry pass skipped, another instance is running one")
	default:
		s.logger.Error("expiry pass failed", "error", err)
	}
}
