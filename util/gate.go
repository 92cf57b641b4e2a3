package util

import "context"

// A Gate limits concurrency. Every gate has a maximum number
// number of goroutines to allow through at a time. Goroutines enter the gate
// by calling Enter(), and signal that they are done by calling Leave()
type Gate chan struct{}

// NewGate returns a Gate which accepts at most n entries at a time.
// A value of n less than 1 is treated as 1.
func NewGate(n int) Gate {
	if n < 1 {
		n = 1
	}
	return Gate(make(chan struct{}, n))
}

// Enter is called at the beginning of the section to be protected by
// the gate, and will block the calling goroutine until there are less than
// n goroutines inside, or until ctx is done. Enter returns ctx.Err() if it
// gave up waiting; in that case Leave must not be called.
// It is safe to call this from multiple goroutines.
func (g Gate) Enter(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave marks a goroutine outside the critical section. It is important to
// balance each call to Enter with a call to Leave. Enter and Leave do not need
// to be called from the same goroutine, necessarily.
func (g Gate) Leave() {
	<-g
}

// ForEach calls fn(i) for every i in [0, n), running at most cap(g) calls at
// once. Every call is made unless ctx is cancelled first. The error returned
// is the first non-nil error in index order, or ctx.Err().
func (g Gate) ForEach(ctx context.Context, n int, fn func(i int) error) error {
	errs := make([]error, n)
	done := make(chan struct{}, n)
	started := 0
	var enterErr error
	for i := 0; i < n; i++ {
		if enterErr = g.Enter(ctx); enterErr != nil {
			break
		}
		started++
		go func(i int) {
			defer func() {
				g.Leave()
				done <- struct{}{}
			}()
			errs[i] = fn(i)
		}(i)
	}
	for i := 0; i < started; i++ {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return enterErr
}
