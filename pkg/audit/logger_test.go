package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) *FileLogger {
	t.Helper()
	l, err := NewFileLogger(filepath.Join(t.TempDir(), "audit.log"), RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func seedEvents(t *testing.T, l *FileLogger) {
	t.Helper()
	events := []*Event{
		NewEvent("alice", "office", "apply").WithSnapshot("s1").WithSuccess(),
		NewEvent("alice", "office", "apply").WithError(errors.New("route add failed")).WithRollback(true),
		NewEvent("bob", "lab", "rollback").WithSnapshot("s1").WithSuccess(),
		NewEvent("bob", "lab", "validate").WithSuccess(),
	}
	for _, e := range events {
		if err := l.Log(e); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
}

func TestQueryFilters(t *testing.T) {
	l := newTestLogger(t)
	seedEvents(t, l)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by user", Filter{User: "alice"}, 2},
		{"by profile", Filter{Profile: "lab"}, 2},
		{"by operation", Filter{Operation: "apply"}, 2},
		{"failures only", Filter{FailureOnly: true}, 1},
		{"success only", Filter{SuccessOnly: true}, 3},
		{"limit", Filter{Limit: 2}, 2},
		{"offset past end", Filter{Offset: 10}, 0},
		{"combined", Filter{User: "bob", Operation: "rollback"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := l.Query(tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestQueryTimeWindow(t *testing.T) {
	l := newTestLogger(t)
	seedEvents(t, l)

	events, err := l.Query(Filter{StartTime: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("recent window: got %d, want 4", len(events))
	}

	events, err = l.Query(Filter{EndTime: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("past window: got %d, want 0", len(events))
	}
}

func TestEventRoundTrip(t *testing.T) {
	l := newTestLogger(t)

	e := NewEvent("carol", "office", "apply").
		WithSnapshot("snap-9").
		WithOperations([]OpRecord{
			{Type: "add", Dest: "10.0.0.0/24", Gateway: "192.168.1.1", Outcome: "applied"},
			{Type: "delete", Dest: "10.9.9.0/24", Gateway: "192.168.1.1", Outcome: "applied"},
		}).
		WithExecuteMode(true).
		WithDuration(1200 * time.Millisecond).
		WithSuccess()
	if err := l.Log(e); err != nil {
		t.Fatal(err)
	}

	events, err := l.Query(Filter{User: "carol"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	got := events[0]
	if got.ID != e.ID || got.SnapshotID != "snap-9" || len(got.Operations) != 2 {
		t.Errorf("event did not survive the round trip: %+v", got)
	}
	if !got.ExecuteMode || got.Duration != 1200*time.Millisecond {
		t.Errorf("flags lost: %+v", got)
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewFileLogger(path, RotationConfig{MaxSize: 256, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 50; i++ {
		if err := l.Log(NewEvent("alice", "office", "apply").WithSuccess()); err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}

	rotated, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) == 0 {
		t.Error("no rotated files despite exceeding max size")
	}
	if len(rotated) > 2 {
		t.Errorf("retention not enforced: %d rotated files", len(rotated))
	}
}

func TestDefaultLoggerNoopWhenUnset(t *testing.T) {
	// Never panics or errors without a configured backend.
	if err := Log(NewEvent("x", "y", "apply")); err != nil {
		t.Errorf("Log without backend: %v", err)
	}
	events, err := Query(Filter{})
	if err != nil || len(events) != 0 {
		t.Errorf("Query without backend: %v, %v", events, err)
	}
}
