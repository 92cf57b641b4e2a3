package store

import (
	"sync"
	"time"
)

// presence records what a HEAD request told us about a key. Objects are
// immutable once written, so a positive answer can be kept for a long time.
// A negative answer may be invalidated by another writer at any moment, so
// it is kept only briefly.
type presence int8

const (
	unknown presence = iota
	present
	absent
)

const (
	presentTTL = 24 * time.Hour
	absentTTL  = 5 * time.Second
	sweepEvery = time.Hour
)

type presenceEntry struct {
	state  presence
	expire time.Time
}

// presenceCache remembers which keys of a remote store are known to exist.
// It saves HEAD requests for the repeated existence checks made before
// every object write.
type presenceCache struct {
	m         sync.RWMutex
	entries   map[string]presenceEntry
	nextSweep time.Time
	now       func() time.Time
}

func newPresenceCache() *presenceCache {
	return &presenceCache{
		entries: make(map[string]presenceEntry),
		now:     time.Now,
	}
}

// Lookup returns the cached state of key, or unknown if there is no live
// entry. When fill is not nil an unknown key is resolved by calling it and
// the answer is remembered. The lock is not held while fill runs.
func (c *presenceCache) Lookup(key string, fill func(key string) (bool, error)) (presence, error) {
	now := c.now()
	c.m.RLock()
	entry, ok := c.entries[key]
	sweep := now.After(c.nextSweep)
	c.m.RUnlock()
	if sweep {
		go c.sweep()
	}
	if ok && now.Before(entry.expire) {
		return entry.state, nil
	}
	if fill == nil {
		return unknown, nil
	}
	exists, err := fill(key)
	if err != nil {
		return unknown, err
	}
	c.Mark(key, exists)
	if exists {
		return present, nil
	}
	return absent, nil
}

// Mark records whether key exists.
func (c *presenceCache) Mark(key string, exists bool) {
	entry := presenceEntry{state: absent, expire: c.now().Add(absentTTL)}
	if exists {
		entry = presenceEntry{state: present, expire: c.now().Add(presentTTL)}
	}
	c.m.Lock()
	c.entries[key] = entry
	c.m.Unlock()
}

// Forget drops anything known about key.
func (c *presenceCache) Forget(key string) {
	c.m.Lock()
	delete(c.entries, key)
	c.m.Unlock()
}

// sweep removes expired entries. It holds the lock the entire time.
func (c *presenceCache) sweep() {
	c.m.Lock()
	defer c.m.Unlock()
	now := c.now()
	if now.Before(c.nextSweep) {
		// someone else swept already
		return
	}
	c.nextSweep = now.Add(sweepEvery)
	for k, v := range c.entries {
		if now.After(v.expire) {
			delete(c.entries, k)
		}
	}
}
