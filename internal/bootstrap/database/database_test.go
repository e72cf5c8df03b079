package database

import (
	"context"
	"path/filepath"
	"testing"

	"civicdesk/internal/bootstrap/config"
)

func TestWithPragmas(t *testing.T) {
	testCases := []struct {
		dsn  string
		want string
	}{
		{dsn: "data/app.sqlite", want: "data/app.sqlite?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"},
		{dsn: "file:app.sqlite?cache=shared", want: "file:app.sqlite?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"},
		{dsn: "app.sqlite?_pragma=busy_timeout(100)", want: "app.sqlite?_pragma=busy_timeout(100)"},
	}

	for _, testCase := range testCases {
		if got := withPragmas(testCase.dsn); got != testCase.want {
			t.Fatalf("withPragmas(%q) = %q, want %q", testCase.dsn, got, testCase.want)
		}
	}
}

func TestOpenCreatesDirectoryAndMigrates(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "nested", "civicdesk.sqlite")

	db, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"grievances", "grievance_events", "kv_entries"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %q missing after migrate", table)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mongodb", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}
