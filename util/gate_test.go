package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateMaximum(t *testing.T) {
	// create 10 goroutines trying to enter a gate that can only hold 5
	g := NewGate(5)
	var nenter int64
	for i := 0; i < 10; i++ {
		go func() {
			if g.Enter(context.Background()) == nil {
				atomic.AddInt64(&nenter, 1)
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	// there should be 5 enters
	if n := atomic.LoadInt64(&nenter); n != 5 {
		t.Errorf("Received %d enters, expected %d", n, 5)
	}

	// call leave a few times and see what happens
	g.Leave()
	g.Leave()
	time.Sleep(10 * time.Millisecond)

	if n := atomic.LoadInt64(&nenter); n != 7 {
		t.Errorf("Received %d enters, expected %d", n, 7)
	}
	for i := 0; i < 5; i++ {
		g.Leave()
	}
	time.Sleep(10 * time.Millisecond)
	if n := atomic.LoadInt64(&nenter); n != 10 {
		t.Errorf("Received %d enters, expected %d", n, 10)
	}
	for i := 0; i < 3; i++ {
		g.Leave()
	}
}

func TestGateCancel(t *testing.T) {
	g := NewGate(1)
	g.Enter(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := g.Enter(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Received %v, expected %v", err, context.DeadlineExceeded)
	}
	g.Leave()
}

func TestForEach(t *testing.T) {
	const limit = 3
	g := NewGate(limit)
	var inside, most, calls int64
	err := g.ForEach(context.Background(), 20, func(i int) error {
		n := atomic.AddInt64(&inside, 1)
		for {
			m := atomic.LoadInt64(&most)
			if n <= m || atomic.CompareAndSwapInt64(&most, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&calls, 1)
		atomic.AddInt64(&inside, -1)
		return nil
	})
	if err != nil {
		t.Errorf("Received error %s", err.Error())
	}
	if calls != 20 {
		t.Errorf("Received %d calls, expected 20", calls)
	}
	if most > limit {
		t.Errorf("Received %d concurrent calls, limit is %d", most, limit)
	}
}

func TestForEachError(t *testing.T) {
	g := NewGate(2)
	bad := errors.New("bad")
	var calls int64
	err := g.ForEach(context.Background(), 6, func(i int) error {
		atomic.AddInt64(&calls, 1)
		if i == 2 || i == 4 {
			return bad
		}
		return nil
	})
	if err != bad {
		t.Errorf("Received %v, expected %v", err, bad)
	}
	if calls != 6 {
		t.Errorf("Received %d calls, expected every call to be made", calls)
	}
}
