package rejectundo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "civicdesk/internal/domain/grievance"
)

type memoryRejecter struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	calls    []string
}

func newMemoryRejecter(ids ...string) *memoryRejecter {
	r := &memoryRejecter{statuses: make(map[string]domain.Status)}
	for _, id := range ids {
		r.statuses[id] = domain.StatusPending
	}
	return r
}

func (r *memoryRejecter) Reject(_ context.Context, id string) (domain.Grievance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
	status, ok := r.statuses[id]
	if !ok {
		return domain.Grievance{}, domain.ErrNotFound
	}
	if err := domain.EnsureTransition(status, domain.StatusRejected); err != nil {
		return domain.Grievance{}, err
	}
	r.statuses[id] = domain.StatusRejected
	return domain.Grievance{ID: id, Status: domain.StatusRejected}, nil
}

func (r *memoryRejecter) status(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

func (r *memoryRejecter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func commitChannel() (chan Commit, Option) {
	ch := make(chan Commit, 8)
	return ch, WithCommitListener(func(c Commit) { ch <- c })
}

func waitCommit(t *testing.T, ch <-chan Commit, within time.Duration) Commit {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(within):
		t.Fatalf("no commit within %s", within)
		return Commit{}
	}
}

func expectNoCommit(t *testing.T, ch <-chan Commit, within time.Duration) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected commit %+v", c)
	case <-time.After(within):
	}
}

func TestExpiryRejectsOnce(t *testing.T) {
	rejecter := newMemoryRejecter("g1")
	commits, listen := commitChannel()
	s := New(rejecter, 40*time.Millisecond, listen)
	defer s.Close()

	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	c := waitCommit(t, commits, time.Second)
	if c.Err != nil || c.ID != "g1" || c.Grievance.Status != domain.StatusRejected {
		t.Fatalf("commit = %+v", c)
	}
	expectNoCommit(t, commits, 100*time.Millisecond)

	if rejecter.callCount() != 1 {
		t.Fatalf("reject calls = %d, want 1", rejecter.callCount())
	}
	if _, _, ok := s.Pending(); ok {
		t.Fatalf("Pending() ok after commit, want idle")
	}
	if _, ok := s.Cancel(); ok {
		t.Fatalf("Cancel() after commit returned true")
	}
}

func TestCancelThenReinitiate(t *testing.T) {
	const window = 250 * time.Millisecond
	rejecter := newMemoryRejecter("g1")
	commits, listen := commitChannel()
	s := New(rejecter, window, listen)
	defer s.Close()

	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	time.Sleep(window * 2 / 5)
	id, ok := s.Cancel()
	if !ok || id != "g1" {
		t.Fatalf("Cancel() = %q, %v; want g1, true", id, ok)
	}

	expectNoCommit(t, commits, window+150*time.Millisecond)
	if got := rejecter.status("g1"); got != domain.StatusPending {
		t.Fatalf("status after cancel = %q, want Pending", got)
	}
	if rejecter.callCount() != 0 {
		t.Fatalf("reject calls = %d, want 0", rejecter.callCount())
	}

	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate() again error = %v", err)
	}
	waitCommit(t, commits, 2*time.Second)
	if got := rejecter.status("g1"); got != domain.StatusRejected {
		t.Fatalf("status after expiry = %q, want Rejected", got)
	}
}

func TestSecondInitiateReplacesFirst(t *testing.T) {
	rejecter := newMemoryRejecter("g1", "g2")
	commits, listen := commitChannel()
	s := New(rejecter, 60*time.Millisecond, listen)
	defer s.Close()

	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate(g1) error = %v", err)
	}
	replaced, err := s.Initiate("g2")
	if err != nil {
		t.Fatalf("Initiate(g2) error = %v", err)
	}
	if replaced != "g1" {
		t.Fatalf("replaced = %q, want g1", replaced)
	}

	c := waitCommit(t, commits, time.Second)
	if c.ID != "g2" {
		t.Fatalf("committed %q, want g2", c.ID)
	}
	expectNoCommit(t, commits, 150*time.Millisecond)
	if got := rejecter.status("g1"); got != domain.StatusPending {
		t.Fatalf("g1 status = %q, want Pending", got)
	}
}

func TestPendingReportsRemaining(t *testing.T) {
	s := New(newMemoryRejecter("g1"), time.Minute)
	defer s.Close()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	if _, _, ok := s.Pending(); ok {
		t.Fatalf("Pending() ok while idle")
	}
	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	current = base.Add(20 * time.Second)
	id, remaining, ok := s.Pending()
	if !ok || id != "g1" || remaining != 40*time.Second {
		t.Fatalf("Pending() = %q, %s, %v; want g1, 40s, true", id, remaining, ok)
	}
}

func TestCancelRacingExpiryCommitsAtMostOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		rejecter := newMemoryRejecter("g1")
		commits, listen := commitChannel()
		s := New(rejecter, time.Millisecond, listen)

		if _, err := s.Initiate("g1"); err != nil {
			t.Fatalf("Initiate() error = %v", err)
		}
		time.Sleep(time.Millisecond)
		_, cancelled := s.Cancel()

		time.Sleep(20 * time.Millisecond)
		calls := rejecter.callCount()
		if cancelled && calls != 0 {
			t.Fatalf("iteration %d: cancel won but reject ran %d times", i, calls)
		}
		if !cancelled && calls != 1 {
			t.Fatalf("iteration %d: cancel lost but reject ran %d times", i, calls)
		}
		if len(commits) != calls {
			t.Fatalf("iteration %d: commits = %d, calls = %d", i, len(commits), calls)
		}
		s.Close()
	}
}

func TestClosedSchedulerRefusesWork(t *testing.T) {
	rejecter := newMemoryRejecter("g1")
	commits, listen := commitChannel()
	s := New(rejecter, 30*time.Millisecond, listen)

	if _, err := s.Initiate("g1"); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	s.Close()
	expectNoCommit(t, commits, 100*time.Millisecond)

	if _, err := s.Initiate("g1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Initiate() after Close error = %v, want ErrClosed", err)
	}
}

func TestInitiateRequiresID(t *testing.T) {
	s := New(newMemoryRejecter(), time.Second)
	defer s.Close()
	if _, err := s.Initiate("  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Initiate() error = %v, want ErrValidation", err)
	}
}

func TestFailedRejectIsReported(t *testing.T) {
	commits, listen := commitChannel()
	s := New(RejectFunc(func(context.Context, string) (domain.Grievance, error) {
		return domain.Grievance{}, domain.ErrInvalidTransition
	}), 10*time.Millisecond, listen)
	defer s.Close()

	if _, err := s.Initiate("g9"); err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	c := waitCommit(t, commits, time.Second)
	if !errors.Is(c.Err, domain.ErrInvalidTransition) {
		t.Fatalf("commit err = %v, want ErrInvalidTransition", c.Err)
	}
}
