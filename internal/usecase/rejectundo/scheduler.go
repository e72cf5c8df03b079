// Package rejectundo defers a rejection for a grace window during which the
// operator can take it back. One scheduler belongs to one operator session.
package rejectundo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
)

const DefaultWindow = 5 * time.Second

var ErrClosed = errors.New("reject-undo scheduler closed")

// Rejecter commits a rejection. The grievance service satisfies it through RejectFunc.
type Rejecter interface {
	Reject(ctx context.Context, id string) (domain.Grievance, error)
}

type RejectFunc func(ctx context.Context, id string) (domain.Grievance, error)

func (f RejectFunc) Reject(ctx context.Context, id string) (domain.Grievance, error) {
	return f(ctx, id)
}

// Commit reports the outcome of an expired countdown.
type Commit struct {
	ID        string
	Grievance domain.Grievance
	Err       error
}

type pendingReject struct {
	id       string
	deadline time.Time
	timer    *time.Timer
	gen      uint64
}

type Scheduler struct {
	rejecter Rejecter
	window   time.Duration
	onCommit func(Commit)
	baseCtx  context.Context
	now      func() time.Time

	mu      sync.Mutex
	gen     uint64
	pending *pendingReject
	closed  bool
}

type Option func(*Scheduler)

// WithCommitListener is called once per fired countdown, from the timer goroutine.
func WithCommitListener(fn func(Commit)) Option {
	return func(s *Scheduler) { s.onCommit = fn }
}

// WithContext sets the context the deferred Reject call runs with.
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

func New(rejecter Rejecter, window time.Duration, opts ...Option) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Scheduler{
		rejecter: rejecter,
		window:   window,
		baseCtx:  context.Background(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Initiate starts a countdown for id, replacing any countdown already running.
// It returns the id whose countdown was replaced, if any.
func (s *Scheduler) Initiate(id string) (replaced string, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ValidationError("id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	if s.pending != nil {
		s.pending.timer.Stop()
		replaced = s.pending.id
		s.pending = nil
	}

	s.gen++
	gen := s.gen
	s.pending = &pendingReject{
		id:       id,
		deadline: s.now().Add(s.window),
		gen:      gen,
	}
	s.pending.timer = time.AfterFunc(s.window, func() { s.fire(gen) })
	return replaced, nil
}

// Cancel stops the running countdown. It returns false when nothing was pending,
// including after the rejection was already committed.
func (s *Scheduler) Cancel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return "", false
	}
	s.pending.timer.Stop()
	id := s.pending.id
	s.pending = nil
	return id, true
}

// Pending reports the id under countdown and the time left.
func (s *Scheduler) Pending() (id string, remaining time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return "", 0, false
	}
	remaining = s.pending.deadline.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return s.pending.id, remaining, true
}

// Close drops the pending countdown without committing it.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.pending != nil {
		s.pending.timer.Stop()
		s.pending = nil
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.pending == nil || s.pending.gen != gen {
		// cancelled or replaced after the timer was already due
		s.mu.Unlock()
		return
	}
	id := s.pending.id
	s.pending = nil
	s.mu.Unlock()

	ctx := logging.WithAttrs(s.baseCtx, slog.String("grievance_id", id))
	record, err := s.rejecter.Reject(ctx, id)
	if err != nil {
		logging.Warn(ctx, "deferred reject failed", slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Info(ctx, "deferred reject committed")
	}
	if s.onCommit != nil {
		s.onCommit(Commit{ID: id, Grievance: record, Err: err})
	}
}
