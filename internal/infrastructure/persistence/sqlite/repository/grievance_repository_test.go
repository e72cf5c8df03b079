package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"civicdesk/internal/domain/grievance"
	"civicdesk/internal/infrastructure/persistence/sqlite/model"
	sqliteuow "civicdesk/internal/infrastructure/persistence/sqlite/uow"
	"civicdesk/internal/ports"
)

func setupGrievanceRepository(t *testing.T) (*GrievanceRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "civicdesk.sqlite") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Grievance{}, &model.GrievanceEvent{}, &model.KVEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewGrievanceRepository(db), db
}

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func sampleDraft(name string, area string) grievance.Draft {
	return grievance.Draft{
		CitizenName: name,
		Area:        area,
		Description: "Streetlight broken for 3 days",
		Enrichment: grievance.Enrichment{
			Category:      "Electricity",
			Priority:      grievance.PriorityMedium,
			Sentiment:     "Neutral",
			EstimatedTime: "3 Days",
		},
	}
}

func TestCreateGrievanceAssignsIDAndTimestamps(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	created, err := repo.CreateGrievance(ctx, sampleDraft("Asha", "Bhanugudi"))
	if err != nil {
		t.Fatalf("CreateGrievance() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("CreateGrievance() id is empty")
	}
	if created.Status != grievance.StatusPending {
		t.Fatalf("status = %q, want Pending", created.Status)
	}
	if !created.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("timestamps = %s / %s", created.CreatedAt, created.UpdatedAt)
	}

	loaded, err := repo.GetGrievance(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetGrievance() error = %v", err)
	}
	if loaded != created {
		t.Fatalf("GetGrievance() = %+v, want %+v", loaded, created)
	}
}

func TestListGrievancesNewestFirst(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()
	repo.now = steppingClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 1500*time.Millisecond)

	var ids []string
	for i := 0; i < 4; i++ {
		created, err := repo.CreateGrievance(ctx, sampleDraft(fmt.Sprintf("citizen-%d", i), "Sarpavaram"))
		if err != nil {
			t.Fatalf("CreateGrievance(%d) error = %v", i, err)
		}
		ids = append(ids, created.ID)
	}

	items, err := repo.ListGrievances(ctx, ports.GrievanceFilter{})
	if err != nil {
		t.Fatalf("ListGrievances() error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4", len(items))
	}
	for i, item := range items {
		if item.ID != ids[len(ids)-1-i] {
			t.Fatalf("items[%d] = %s, want %s", i, item.ID, ids[len(ids)-1-i])
		}
	}
}

func TestListGrievancesBreaksTimestampTiesByInsertOrder(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	first, err := repo.CreateGrievance(ctx, sampleDraft("a", "Main Road"))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := repo.CreateGrievance(ctx, sampleDraft("b", "Main Road"))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	items, err := repo.ListGrievances(ctx, ports.GrievanceFilter{})
	if err != nil {
		t.Fatalf("ListGrievances() error = %v", err)
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("order = [%s %s], want [%s %s]", items[0].ID, items[1].ID, second.ID, first.ID)
	}
}

func TestListGrievancesConcurrentCreatesStaySorted(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.CreateGrievance(ctx, sampleDraft(fmt.Sprintf("c-%d", i), "Gandhi Nagar")); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent create: %v", err)
	}

	items, err := repo.ListGrievances(ctx, ports.GrievanceFilter{})
	if err != nil {
		t.Fatalf("ListGrievances() error = %v", err)
	}
	if len(items) != 8 {
		t.Fatalf("len(items) = %d, want 8", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("items[%d].CreatedAt %s after items[%d].CreatedAt %s", i, items[i].CreatedAt, i-1, items[i-1].CreatedAt)
		}
	}
}

func TestListGrievancesFilters(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()

	asha, err := repo.CreateGrievance(ctx, sampleDraft("Asha", "Bhanugudi"))
	if err != nil {
		t.Fatalf("create asha: %v", err)
	}
	if _, err := repo.CreateGrievance(ctx, sampleDraft("Ravi", "Bhanugudi")); err != nil {
		t.Fatalf("create ravi: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, asha.ID, grievance.StatusPatch{Status: grievance.StatusRejected}); err != nil {
		t.Fatalf("reject asha: %v", err)
	}

	byName, err := repo.ListGrievances(ctx, ports.GrievanceFilter{CitizenName: "ASHA"})
	if err != nil {
		t.Fatalf("filter by name: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != asha.ID {
		t.Fatalf("filter by name = %+v", byName)
	}

	rejected, err := repo.ListGrievances(ctx, ports.GrievanceFilter{Status: grievance.StatusRejected})
	if err != nil {
		t.Fatalf("filter by status: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != asha.ID {
		t.Fatalf("filter by status = %+v", rejected)
	}

	byArea, err := repo.ListGrievances(ctx, ports.GrievanceFilter{Area: "Sarpavaram"})
	if err != nil {
		t.Fatalf("filter by area: %v", err)
	}
	if len(byArea) != 0 {
		t.Fatalf("filter by area len = %d, want 0", len(byArea))
	}
}

func TestUpdateStatusOnlyTouchesPatchedFields(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()
	repo.now = steppingClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), time.Minute)

	created, err := repo.CreateGrievance(ctx, sampleDraft("Asha", "Bhanugudi"))
	if err != nil {
		t.Fatalf("CreateGrievance() error = %v", err)
	}

	reply := "Pole replaced."
	updated, err := repo.UpdateStatus(ctx, created.ID, grievance.StatusPatch{
		Status:     grievance.StatusResolved,
		AdminReply: &reply,
	})
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.Status != grievance.StatusResolved || updated.AdminReply != reply {
		t.Fatalf("updated status=%q reply=%q", updated.Status, updated.AdminReply)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not bumped: %s <= %s", updated.UpdatedAt, created.UpdatedAt)
	}

	expected := created
	expected.Status = updated.Status
	expected.AdminReply = updated.AdminReply
	expected.UpdatedAt = updated.UpdatedAt
	if updated != expected {
		t.Fatalf("UpdateStatus() changed unpatched fields:\n got  %+v\n want %+v", updated, expected)
	}

	rejected, err := repo.UpdateStatus(ctx, created.ID, grievance.StatusPatch{Status: grievance.StatusRejected})
	if err != nil {
		t.Fatalf("UpdateStatus(no reply) error = %v", err)
	}
	if rejected.AdminReply != reply {
		t.Fatalf("admin_reply = %q, want untouched %q", rejected.AdminReply, reply)
	}
}

func TestUpdateStatusUnknownIDIsNotFound(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)

	_, err := repo.UpdateStatus(context.Background(), "missing", grievance.StatusPatch{Status: grievance.StatusRejected})
	if !errors.Is(err, grievance.ErrNotFound) {
		t.Fatalf("UpdateStatus() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetGrievance(context.Background(), "missing"); !errors.Is(err, grievance.ErrNotFound) {
		t.Fatalf("GetGrievance() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusGuardedByFrom(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()

	created, err := repo.CreateGrievance(ctx, sampleDraft("Asha", "Bhanugudi"))
	if err != nil {
		t.Fatalf("CreateGrievance() error = %v", err)
	}

	if _, err := repo.UpdateStatus(ctx, created.ID, grievance.StatusPatch{
		From:   grievance.StatusPending,
		Status: grievance.StatusRejected,
	}); err != nil {
		t.Fatalf("UpdateStatus(from pending) error = %v", err)
	}

	_, err = repo.UpdateStatus(ctx, created.ID, grievance.StatusPatch{
		From:   grievance.StatusPending,
		Status: grievance.StatusResolved,
	})
	if !errors.Is(err, grievance.ErrInvalidTransition) {
		t.Fatalf("UpdateStatus(stale from) error = %v, want ErrInvalidTransition", err)
	}

	got, err := repo.GetGrievance(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetGrievance() error = %v", err)
	}
	if got.Status != grievance.StatusRejected {
		t.Fatalf("status = %q, want Rejected", got.Status)
	}

	_, err = repo.UpdateStatus(ctx, "missing", grievance.StatusPatch{From: grievance.StatusPending, Status: grievance.StatusRejected})
	if !errors.Is(err, grievance.ErrNotFound) {
		t.Fatalf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEventsInsideRolledBackTransactionAreDiscarded(t *testing.T) {
	repo, db := setupGrievanceRepository(t)
	ctx := context.Background()
	uow := sqliteuow.NewUnitOfWork(db)

	created, err := repo.CreateGrievance(ctx, sampleDraft("Asha", "Bhanugudi"))
	if err != nil {
		t.Fatalf("CreateGrievance() error = %v", err)
	}

	boom := errors.New("boom")
	err = uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.UpdateStatus(txCtx, created.ID, grievance.StatusPatch{Status: grievance.StatusRejected}); err != nil {
			return err
		}
		if _, err := repo.AppendEvent(txCtx, grievance.Event{
			GrievanceID: created.ID,
			Action:      grievance.EventRejected,
			FromStatus:  grievance.StatusPending,
			ToStatus:    grievance.StatusRejected,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	loaded, err := repo.GetGrievance(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetGrievance() error = %v", err)
	}
	if loaded.Status != grievance.StatusPending {
		t.Fatalf("status after rollback = %q, want Pending", loaded.Status)
	}
	events, err := repo.ListEvents(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events after rollback = %+v, want none", events)
	}
}

func TestListEventsInOrder(t *testing.T) {
	repo, _ := setupGrievanceRepository(t)
	ctx := context.Background()

	for _, action := range []grievance.EventAction{grievance.EventCreated, grievance.EventResolved} {
		if _, err := repo.AppendEvent(ctx, grievance.Event{GrievanceID: "g1", Action: action, ToStatus: grievance.StatusResolved, Actor: "operator"}); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", action, err)
		}
	}

	events, err := repo.ListEvents(ctx, "g1")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Action != grievance.EventCreated || events[1].Action != grievance.EventResolved {
		t.Fatalf("events = %+v", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatalf("event created_at not set")
	}
}
