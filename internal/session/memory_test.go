package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_CreateThenFind(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess, created, err := s.Create(ctx, params("subject-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}

	found, err := s.FindActive(ctx, "subject-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != sess.ID {
		t.Fatalf("found = %+v, want session %s", found, sess.ID)
	}
}

func TestMemoryStore_DuplicateCreate(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	first, _, err := s.Create(ctx, params("subject-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, created, err := s.Create(ctx, params("subject-1"))
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if created {
		t.Fatal("duplicate create must not report created")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate create returned %s, want %s", second.ID, first.ID)
	}
}

func TestMemoryStore_ConcurrentCreateSingleWinner(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	ids := make([]string, n)
	createds := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, created, err := s.Create(ctx, params("subject-1"))
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids[i] = sess.ID
			createds[i] = created
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < n; i++ {
		if createds[i] {
			wins++
		}
		if ids[i] != ids[0] {
			t.Fatalf("divergent session ids: %s vs %s", ids[i], ids[0])
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestMemoryStore_FindActive_None(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	got, err := s.FindActive(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}
