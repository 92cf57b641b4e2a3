package store

import (
	"errors"
	"testing"
	"time"
)

func TestPresenceCache(t *testing.T) {
	clock := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newPresenceCache()
	c.now = func() time.Time { return clock }
	c.nextSweep = clock.Add(sweepEvery)

	if p, _ := c.Lookup("a", nil); p != unknown {
		t.Errorf("Lookup(a) = %v, expected unknown", p)
	}

	var fills int
	fill := func(key string) (bool, error) {
		fills++
		return key == "a", nil
	}
	for i := 0; i < 3; i++ {
		if p, err := c.Lookup("a", fill); p != present || err != nil {
			t.Errorf("Lookup(a) = %v, %v", p, err)
		}
		if p, err := c.Lookup("b", fill); p != absent || err != nil {
			t.Errorf("Lookup(b) = %v, %v", p, err)
		}
	}
	if fills != 2 {
		t.Errorf("fill called %d times, expected 2", fills)
	}

	// misses expire quickly, hits do not
	clock = clock.Add(2 * absentTTL)
	c.Lookup("a", fill)
	c.Lookup("b", fill)
	if fills != 3 {
		t.Errorf("fill called %d times, expected 3", fills)
	}

	c.Forget("a")
	if p, _ := c.Lookup("a", nil); p != unknown {
		t.Errorf("Lookup(a) after Forget = %v, expected unknown", p)
	}

	boom := errors.New("boom")
	_, err := c.Lookup("c", func(string) (bool, error) { return false, boom })
	if err != boom {
		t.Errorf("Lookup(c) error = %v, expected %v", err, boom)
	}
	if p, _ := c.Lookup("c", nil); p != unknown {
		t.Errorf("failed fill was cached as %v", p)
	}
}

func TestPresenceCacheSweep(t *testing.T) {
	clock := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newPresenceCache()
	c.now = func() time.Time { return clock }
	c.Mark("a", true)
	c.Mark("b", false)
	clock = clock.Add(time.Minute)
	c.sweep()
	if len(c.entries) != 1 {
		t.Errorf("%d entries after sweep, expected 1", len(c.entries))
	}
}
