package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing, or as the nearest tier of a hybrid repository.
type Memory struct {
	m       sync.RWMutex
	store   map[string]*entry
	version int64 // last version handed out
}

type entry struct {
	data    []byte
	version int64
}

var (
	// ensure Memory satisfies the Store and Versioned interfaces
	_ Store     = &Memory{}
	_ Versioned = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string]*entry)}
}

// Get returns a copy of the value stored under key.
func (ms *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, _, ok, err := ms.Load(ctx, key)
	return data, ok, err
}

// Exists reports whether key is in the store.
func (ms *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ms.m.RLock()
	_, ok := ms.store[key]
	ms.m.RUnlock()
	return ok, nil
}

// ListPrefix returns all the key entries which begin with the given prefix.
func (ms *Memory) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Put saves a copy of data under key.
func (ms *Memory) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.store[key]; ok && !overwrite {
		return ErrKeyExists
	}
	ms.put0(key, data)
	return nil
}

// put0 stores a copy of data. The caller must hold the write lock.
func (ms *Memory) put0(key string, data []byte) int64 {
	ms.version++
	ms.store[key] = &entry{
		data:    append([]byte(nil), data...),
		version: ms.version,
	}
	return ms.version
}

// Delete the given key from the store. It is not an error if the item does
// not exist in the store.
func (ms *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}

// Load returns a copy of the value for key and its version.
func (ms *Memory) Load(ctx context.Context, key string) ([]byte, Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, NoToken, false, err
	}
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, NoToken, false, nil
	}
	return append([]byte(nil), v.data...), memoryToken(v.version), true, nil
}

// Save replaces the value for key if its version is still prev.
func (ms *Memory) Save(ctx context.Context, key string, data []byte, prev Token) (Token, error) {
	if err := ctx.Err(); err != nil {
		return NoToken, err
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	current := NoToken
	if v, ok := ms.store[key]; ok {
		current = memoryToken(v.version)
	}
	if current != prev {
		return NoToken, ErrPrecondition
	}
	return memoryToken(ms.put0(key, data)), nil
}

func memoryToken(v int64) Token {
	return Token(strconv.FormatInt(v, 10))
}
