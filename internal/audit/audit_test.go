package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMemoryStoreRecent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.Append(ctx, Entry{
			ID:     string(rune('a' + i)),
			Model:  "order",
			Action: ActionUpdate,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("order = %s, %s, want newest first", got[0].ID, got[1].ID)
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(0) len = %d, want 3", len(all))
	}
}

func TestMemoryStoreBounded(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < maxMemoryEntries+10; i++ {
		if err := s.Append(ctx, Entry{Model: "order", Action: ActionDelete}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	all, _ := s.Recent(ctx, maxMemoryEntries*2)
	if len(all) != maxMemoryEntries {
		t.Errorf("len = %d, want %d", len(all), maxMemoryEntries)
	}
}

func TestLoggerFillsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	l := NewLogger(s, zap.NewNop())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.Record(context.Background(), Entry{Model: "order", RecordID: "7", Action: ActionDelete})

	got, _ := s.Recent(context.Background(), 1)
	if len(got) != 1 {
		t.Fatal("entry not recorded")
	}
	if got[0].ID == "" {
		t.Error("ID not assigned")
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, Entry) error       { return errors.New("down") }
func (failingStore) Recent(context.Context, int) ([]Entry, error) { return nil, errors.New("down") }

func TestLoggerSwallowsStoreFailure(t *testing.T) {
	l := NewLogger(failingStore{}, zap.NewNop())
	// Must not panic or propagate.
	l.Record(context.Background(), Entry{Model: "order", Action: ActionCreate})
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Record(context.Background(), Entry{Model: "order", Action: ActionCreate})

	l = NewLogger(nil, zap.NewNop())
	l.Record(context.Background(), Entry{Model: "order", Action: ActionCreate})
}
