package storetest

import (
	"context"
	"sync/atomic"

	"github.com/ndlib/chasm/store"
)

// Counting wraps a Store and counts the calls made to it. It is used to
// check that layers above a store skip redundant work.
type Counting struct {
	store.Store

	puts   int64
	gets   int64
	exists int64
}

// NewCounting returns a counting wrapper around s.
func NewCounting(s store.Store) *Counting {
	return &Counting{Store: s}
}

func (c *Counting) Get(ctx context.Context, key string) ([]byte, bool, error) {
	atomic.AddInt64(&c.gets, 1)
	return c.Store.Get(ctx, key)
}

func (c *Counting) Exists(ctx context.Context, key string) (bool, error) {
	atomic.AddInt64(&c.exists, 1)
	return c.Store.Exists(ctx, key)
}

func (c *Counting) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	atomic.AddInt64(&c.puts, 1)
	return c.Store.Put(ctx, key, data, overwrite)
}

// Puts returns the number of calls to Put so far.
func (c *Counting) Puts() int { return int(atomic.LoadInt64(&c.puts)) }

// Gets returns the number of calls to Get so far.
func (c *Counting) Gets() int { return int(atomic.LoadInt64(&c.gets)) }

// ExistsCalls returns the number of calls to Exists so far.
func (c *Counting) ExistsCalls() int { return int(atomic.LoadInt64(&c.exists)) }
