package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"qlcal/internal/config"
	"qlcal/internal/schedule"
)

var sample = []schedule.Record{
	{Title: "standup", Predicate: "wd = mon | wd = wed", TimePair: "9:00-9:15"},
	{Title: "review", Description: "bring notes", Predicate: "wd = tue & nw(date, 2024-01-02) % 2 = 0", TimePair: "14:00-15:00"},
	{Title: "payday", Predicate: "md(date + 1) = 1", TimePair: "0:00-23:59"},
}

func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %v", got)
	}

	if err := s.Save(ctx, sample); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(sample, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	if err := s.Save(ctx, sample[1:]); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(sample[1:], got); diff != "" {
		t.Errorf("records after replace (-want +got):\n%s", diff)
	}
}

func TestFileRoundTrip(t *testing.T) {
	roundTrip(t, NewFile(filepath.Join(t.TempDir(), "events.yaml")))
}

func TestSQLiteRoundTrip(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	roundTrip(t, s)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "e.yaml")})
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if _, ok := s.(*File); !ok {
		t.Errorf("expected *File, got %T", s)
	}

	s, err = Open(ctx, config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "e.db")})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQL); !ok {
		t.Errorf("expected *SQL, got %T", s)
	}

	if _, err := Open(ctx, config.StoreConfig{Backend: "mongo"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
	if _, err := Open(ctx, config.StoreConfig{Backend: config.BackendPostgres}); err == nil {
		t.Errorf("expected error for empty postgres dsn")
	}
}

func TestLoadScheduleDropsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	doc := `events:
  - title: good
    predicate: date = 2024-03-01
    time_pair: 9:00-10:00
  - title: bad
    predicate: date = = 2024-03-01
    time_pair: 9:00-10:00
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	sched, err := LoadSchedule(context.Background(), NewFile(path))
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if sched.Len() != 1 {
		t.Fatalf("expected 1 event, got %d", sched.Len())
	}
	if _, e, _ := sched.At(0); e.Title != "good" {
		t.Errorf("unexpected event %+v", e)
	}
}
