package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestPoolGetCreatesOncePerType(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	defer pool.Dispose()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	sessions := make([]*Session, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := pool.Get(ctx, ClientAndroid, false)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			sessions[i] = sess
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("worker %d got a different session instance", i)
		}
	}
}

func TestPoolForceRecreates(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	defer pool.Dispose()
	ctx := context.Background()

	first, err := pool.Get(ctx, ClientAndroid, false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := pool.Get(ctx, ClientAndroid, true)
	if err != nil {
		t.Fatalf("forced Get failed: %v", err)
	}
	if first == second {
		t.Fatalf("forced recreation must yield a new session")
	}
	third, err := pool.Get(ctx, ClientAndroid, false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if third != second {
		t.Fatalf("subsequent gets must reuse the recreated session")
	}
}

func TestPoolTypesAreIndependent(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	defer pool.Dispose()
	ctx := context.Background()

	android, err := pool.Get(ctx, ClientAndroid, false)
	if err != nil {
		t.Fatalf("Get android failed: %v", err)
	}
	music, err := pool.Get(ctx, ClientAndroidMusic, false)
	if err != nil {
		t.Fatalf("Get androidMusic failed: %v", err)
	}
	if android == music {
		t.Fatalf("client types must not share a session")
	}
}

func TestPoolDisposeDropsSessions(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	ctx := context.Background()

	before, err := pool.Get(ctx, ClientAndroid, false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	pool.Dispose()
	if pool.Peek(ClientAndroid) != nil {
		t.Fatalf("Dispose must clear the session map")
	}

	after, err := pool.Get(ctx, ClientAndroid, false)
	if err != nil {
		t.Fatalf("Get after Dispose failed: %v", err)
	}
	if before == after {
		t.Fatalf("session must be recreated after Dispose")
	}
}
