package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	// Create temp file for test database
	f, err := os.CreateTemp("", "ocms-l10n-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	// Open database
	db, err := NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	// Run migrations
	if err := Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	// Return cleanup function
	cleanup := func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	}

	return db, cleanup
}

func createTestRecord(t *testing.T, q *Queries, table string, pid int64) Record {
	t.Helper()

	now := time.Now()
	rec, err := q.CreateRecord(context.Background(), CreateRecordParams{
		TableName:   table,
		Pid:         pid,
		Fields:      `{"title":"Wall"}`,
		Pointers:    "{}",
		Collections: "{}",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	return rec
}

func TestCreateRecord(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	q := New(db)
	rec := createTestRecord(t, q, "tx_example_wall", 1)

	if rec.Uid == 0 {
		t.Error("rec.Uid should not be 0")
	}
	if rec.TableName != "tx_example_wall" {
		t.Errorf("TableName = %q, want %q", rec.TableName, "tx_example_wall")
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}
	if rec.Fields != `{"title":"Wall"}` {
		t.Errorf("Fields = %q", rec.Fields)
	}
}

func TestGetRecord_WrongTable(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	rec := createTestRecord(t, q, "tx_example_wall", 1)

	_, err := q.GetRecord(ctx, GetRecordParams{TableName: "tx_example_brick", Uid: rec.Uid})
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}

	exists, err := q.RecordExists(ctx, GetRecordParams{TableName: "tx_example_wall", Uid: rec.Uid})
	if err != nil {
		t.Fatalf("RecordExists: %v", err)
	}
	if exists != 1 {
		t.Errorf("RecordExists = %d, want 1", exists)
	}
}

func TestUpdateRecord_BumpsVersion(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	rec := createTestRecord(t, q, "tx_example_wall", 1)

	n, err := q.UpdateRecord(ctx, UpdateRecordParams{
		Pid:         2,
		Fields:      `{"title":"Updated"}`,
		Pointers:    `{"tt_content":3}`,
		Collections: "{}",
		UpdatedAt:   time.Now(),
		TableName:   rec.TableName,
		Uid:         rec.Uid,
	})
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows affected = %d, want 1", n)
	}

	got, err := q.GetRecord(ctx, GetRecordParams{TableName: rec.TableName, Uid: rec.Uid})
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.Pid != 2 {
		t.Errorf("Pid = %d, want 2", got.Pid)
	}
	if got.Pointers != `{"tt_content":3}` {
		t.Errorf("Pointers = %q", got.Pointers)
	}
}

func TestUniqueLocalizationIndex(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	src := createTestRecord(t, q, "tx_example_wall", 1)

	now := time.Now()
	params := CreateRecordParams{
		TableName:      "tx_example_wall",
		Pid:            1,
		SysLanguageUid: 1,
		L10nParent:     src.Uid,
		Fields:         "{}",
		Pointers:       "{}",
		Collections:    "{}",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := q.CreateRecord(ctx, params); err != nil {
		t.Fatalf("CreateRecord (first localization): %v", err)
	}
	if _, err := q.CreateRecord(ctx, params); err == nil {
		t.Fatal("expected unique constraint violation for second localization")
	} else if !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Errorf("unexpected error: %v", err)
	}

	uids, err := q.ListLocalizations(ctx, ListLocalizationsParams{
		TableName:      "tx_example_wall",
		L10nParent:     src.Uid,
		SysLanguageUid: 1,
	})
	if err != nil {
		t.Fatalf("ListLocalizations: %v", err)
	}
	if len(uids) != 1 {
		t.Errorf("got %d localizations, want 1", len(uids))
	}
}

func TestListRecordsByPid(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	createTestRecord(t, q, "tt_content", 1)
	createTestRecord(t, q, "tt_content", 1)
	createTestRecord(t, q, "tt_content", 2)
	createTestRecord(t, q, "tx_example_wall", 1)

	items, err := q.ListRecordsByPid(ctx, ListRecordsByPidParams{TableName: "tt_content", Pid: 1})
	if err != nil {
		t.Fatalf("ListRecordsByPid: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d records, want 2", len(items))
	}
	if items[0].Uid >= items[1].Uid {
		t.Errorf("records not ordered by uid: %d, %d", items[0].Uid, items[1].Uid)
	}
}

func TestSeed(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()

	uid, err := Seed(ctx, db)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if uid == 0 {
		t.Fatal("Seed should create the root page")
	}

	// Second seed is a no-op
	again, err := Seed(ctx, db)
	if err != nil {
		t.Fatalf("Seed (second): %v", err)
	}
	if again != 0 {
		t.Errorf("second Seed created page %d", again)
	}

	count, err := New(db).CountRecords(ctx, RootPageTable)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Errorf("pages = %d, want 1", count)
	}
}

func TestSysLog(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	for _, msg := range []string{"first", "second"} {
		if _, err := q.CreateSysLog(ctx, CreateSysLogParams{
			Level:     "warning",
			Category:  "localize",
			Message:   msg,
			Metadata:  "{}",
			CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("CreateSysLog: %v", err)
		}
	}

	entries, err := q.ListSysLog(ctx, ListSysLogParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListSysLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "second" {
		t.Errorf("newest entry = %q, want %q", entries[0].Message, "second")
	}
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(DriverModernc, "/tmp/x.db", time.Second)
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	if !strings.Contains(dsn, "_txlock=immediate") || !strings.Contains(dsn, "busy_timeout%281000%29") {
		t.Errorf("unexpected modernc DSN %q", dsn)
	}

	dsn, err = buildDSN(DriverCGO, "/tmp/x.db?cache=shared", 0)
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "/tmp/x.db?cache=shared&") || !strings.Contains(dsn, "_busy_timeout=5000") {
		t.Errorf("unexpected cgo DSN %q", dsn)
	}

	if _, err := buildDSN("postgres", "x", 0); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
