package crud

import (
	"context"
	"sync"
	"testing"
)

func TestMemStoreReadsOnUnseenModel(t *testing.T) {
	s := NewMemStore()
	desc := orderDescriptor()
	ctx := context.Background()

	n, err := s.Count(ctx, desc, Predicate{})
	if err != nil || n != 0 {
		t.Fatalf("Count = %d, %v, want 0, nil", n, err)
	}
	recs, err := s.Select(ctx, desc, Predicate{}, nil, 0, 10)
	if err != nil || len(recs) != 0 {
		t.Fatalf("Select = %v, %v, want empty", recs, err)
	}
	rec, err := s.Get(ctx, desc, 1)
	if err != nil || rec != nil {
		t.Fatalf("Get = %v, %v, want nil, nil", rec, err)
	}

	// Read paths must not materialize a table as a side effect.
	if _, ok := s.tables[desc.Name]; ok {
		t.Error("read on an unseen model created its table")
	}
}

// Reads on a model nothing has written yet must be safe from many
// goroutines at once; run with -race.
func TestMemStoreConcurrentReads(t *testing.T) {
	s := NewMemStore()
	desc := orderDescriptor()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := s.Count(ctx, desc, Predicate{}); err != nil {
					t.Errorf("Count: %v", err)
					return
				}
				if _, err := s.Select(ctx, desc, Predicate{}, nil, 0, 5); err != nil {
					t.Errorf("Select: %v", err)
					return
				}
				if _, err := s.Get(ctx, desc, j); err != nil {
					t.Errorf("Get: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
