package keylock_test

import (
	"sync"
	"testing"
	"time"

	"reelgate/internal/keylock"
)

func TestMapSerializeSameID(t *testing.T) {
	locks := keylock.New()
	release := locks.Lock("a")

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held id")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released id")
	}
}

func TestMapIndependentIDs(t *testing.T) {
	locks := keylock.New()
	release := locks.Lock("a")
	defer release()

	done := make(chan struct{})
	go func() {
		locks.Lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on b waited for a")
	}
}

func TestMapDropReleasedEntries(t *testing.T) {
	locks := keylock.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"a", "b", "c"}[i%3]
			locks.Lock(id)()
		}(i)
	}
	wg.Wait()
	if n := locks.Len(); n != 0 {
		t.Fatalf("expected no retained entries, got %d", n)
	}
}
