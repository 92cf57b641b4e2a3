// Package storetest provides functions for facilitating the testing of
// anything implementing the store interfaces.
package storetest

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/store"
)

// stored is an entry handed from the writers to the readers.
type stored struct {
	key  string
	size int
}

// Stress runs writer and reader goroutines against s at the same time until
// about totalsize bytes have been written. It is a good test to run with the
// -race flag.
//
// Entries are keyed by the hex digest of their content, the way objects are
// laid out by a repository. Writers race each other on a small pool of
// contents, so the same key is often created by two goroutines at once and
// exactly one of them must see a success. Readers check every entry against
// its key and then either delete it or hand it back for another read.
func Stress(t *testing.T, s store.Store, totalsize int64) {
	if totalsize == 0 {
		totalsize = 100 * 1000 * 1000 // 100MB
	}
	sizes := make(chan int)
	written := make(chan stored, 1000)
	done := make(chan struct{})
	var writers, readers sync.WaitGroup

	for i := 0; i < 5; i++ {
		writers.Add(1)
		go func(seed int64) {
			defer writers.Done()
			writer(t, s, rand.New(rand.NewSource(seed)), sizes, written)
		}(int64(i))
	}
	for i := 0; i < 10; i++ {
		readers.Add(1)
		go func(seed int64) {
			defer readers.Done()
			reader(t, s, rand.New(rand.NewSource(seed)), written, done)
		}(int64(100 + i))
	}

	generateSizes(sizes, totalsize)
	close(sizes)
	writers.Wait()
	close(done)
	readers.Wait()
}

// content returns size bytes derived from a small set of seeds, so that
// different writers often produce the same bytes.
func content(r *rand.Rand, size int) []byte {
	pattern := []byte{byte(r.Intn(4)), byte(size), byte(size >> 8)}
	result := make([]byte, size)
	for i := 0; i < size; i += len(pattern) {
		copy(result[i:], pattern)
	}
	return result
}

func writer(t *testing.T, s store.Store, r *rand.Rand, in <-chan int, out chan<- stored) {
	ctx := context.Background()
	for size := range in {
		data := content(r, size)
		key := model.Hash(data).String()
		err := s.Put(ctx, key, data, false)
		if err == store.ErrKeyExists {
			// someone else got there first; the bytes are the same
			continue
		} else if err != nil {
			t.Error(key, size, err)
			continue
		}
		out <- stored{key: key, size: size}
	}
}

func reader(t *testing.T, s store.Store, r *rand.Rand, in chan stored, done chan struct{}) {
	ctx := context.Background()
	for {
		var item stored
		select {
		case <-done:
			return
		case item = <-in:
		}
		data, ok, err := s.Get(ctx, item.key)
		if err != nil {
			t.Error(err)
			continue
		}
		if !ok {
			// a writer may have recreated and another reader deleted it
			continue
		}
		if len(data) != item.size {
			t.Error("Expected", item.size, "Get() returned", len(data))
		}
		if h := model.Hash(data).String(); h != item.key {
			t.Errorf("content of %s hashes to %s", item.key, h)
			continue
		}

		if r.Float32() < 0.5 {
			if err := s.Delete(ctx, item.key); err != nil {
				t.Error(err)
			}
			continue
		}
		select {
		case in <- item:
		default:
			s.Delete(ctx, item.key)
		}
	}
}

// generateSizes sends sizes to out until they sum to totalsize. The
// exponent is uniform so both tiny and large entries show up.
func generateSizes(out chan<- int, totalsize int64) {
	for totalsize > 0 {
		size := int(math.Exp(16 * rand.Float64()))
		out <- size
		totalsize -= int64(size)
	}
}
