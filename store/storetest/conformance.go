package storetest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/ndlib/chasm/store"
)

// Basic runs a store through the behavior every Store must share. The
// store should be empty when passed in.
func Basic(t *testing.T, s store.Store) {
	ctx := context.Background()

	data, ok, err := s.Get(ctx, "missing")
	if err != nil || ok || data != nil {
		t.Errorf("Get(missing) = %q, %v, %v", data, ok, err)
	}
	ok, err = s.Exists(ctx, "missing")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}

	if err = s.Put(ctx, "abcdef", []byte("hello"), false); err != nil {
		t.Fatalf("Put: %s", err)
	}
	expect(t, s, "abcdef", "hello")

	err = s.Put(ctx, "abcdef", []byte("other"), false)
	if err != store.ErrKeyExists {
		t.Errorf("Put of existing key returned %v", err)
	}
	expect(t, s, "abcdef", "hello")

	if err = s.Put(ctx, "abcdef", []byte("other"), true); err != nil {
		t.Errorf("Put with overwrite: %s", err)
	}
	expect(t, s, "abcdef", "other")

	// an empty value is still a value
	if err = s.Put(ctx, "abcxyz", nil, false); err != nil {
		t.Errorf("Put empty: %s", err)
	}
	ok, err = s.Exists(ctx, "abcxyz")
	if err != nil || !ok {
		t.Errorf("Exists(abcxyz) = %v, %v", ok, err)
	}
	if err = s.Put(ctx, "bcd123", []byte("x"), false); err != nil {
		t.Errorf("Put: %s", err)
	}

	keys, err := s.ListPrefix(ctx, "abc")
	if err != nil {
		t.Errorf("ListPrefix: %s", err)
	}
	sort.Strings(keys)
	if !equal(keys, []string{"abcdef", "abcxyz"}) {
		t.Errorf("ListPrefix(abc) = %v", keys)
	}

	if err = s.Delete(ctx, "abcdef"); err != nil {
		t.Errorf("Delete: %s", err)
	}
	if err = s.Delete(ctx, "abcdef"); err != nil {
		t.Errorf("Delete of missing key: %s", err)
	}
	ok, _ = s.Exists(ctx, "abcdef")
	if ok {
		t.Errorf("key abcdef still exists after Delete")
	}
}

// Race has many goroutines try to create the same key at once. Exactly one
// of them must succeed.
func Race(t *testing.T, s store.Store) {
	const n = 10
	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			results[i] = s.Put(ctx, "racekey", []byte{byte(i)}, false)
			wg.Done()
		}(i)
	}
	wg.Wait()
	winners := 0
	for _, err := range results {
		switch err {
		case nil:
			winners++
		case store.ErrKeyExists:
		default:
			t.Errorf("Put: %s", err)
		}
	}
	if winners != 1 {
		t.Errorf("Got %d successful writers, expected 1", winners)
	}
}

// Versioned runs a store through the conditional save protocol. The store
// should be empty when passed in.
func Versioned(t *testing.T, v store.Versioned) {
	ctx := context.Background()

	data, tok, ok, err := v.Load(ctx, "ref")
	if err != nil || ok || data != nil || tok != store.NoToken {
		t.Errorf("Load(ref) = %q, %q, %v, %v", data, tok, ok, err)
	}

	tok1, err := v.Save(ctx, "ref", []byte("one"), store.NoToken)
	if err != nil {
		t.Fatalf("Save: %s", err)
	}
	if tok1 == store.NoToken {
		t.Errorf("Save returned an empty token")
	}
	_, err = v.Save(ctx, "ref", []byte("again"), store.NoToken)
	if err != store.ErrPrecondition {
		t.Errorf("Save over existing key returned %v", err)
	}

	data, tok, ok, err = v.Load(ctx, "ref")
	if err != nil || !ok || string(data) != "one" || tok != tok1 {
		t.Errorf("Load(ref) = %q, %q, %v, %v", data, tok, ok, err)
	}

	tok2, err := v.Save(ctx, "ref", []byte("two"), tok1)
	if err != nil {
		t.Fatalf("Save: %s", err)
	}
	if tok2 == tok1 {
		t.Errorf("token did not change after Save")
	}
	_, err = v.Save(ctx, "ref", []byte("stale"), tok1)
	if err != store.ErrPrecondition {
		t.Errorf("Save with stale token returned %v", err)
	}
	data, tok, _, _ = v.Load(ctx, "ref")
	if string(data) != "two" || tok != tok2 {
		t.Errorf("Load(ref) = %q, %q, expected two, %q", data, tok, tok2)
	}

	if _, err = v.Save(ctx, "ref2", []byte("x"), store.NoToken); err != nil {
		t.Errorf("Save: %s", err)
	}
	keys, err := v.ListPrefix(ctx, "ref")
	if err != nil {
		t.Errorf("ListPrefix: %s", err)
	}
	sort.Strings(keys)
	if !equal(keys, []string{"ref", "ref2"}) {
		t.Errorf("ListPrefix(ref) = %v", keys)
	}
}

// VersionedRace has many goroutines try to save over the same version at
// once. Exactly one of them must succeed.
func VersionedRace(t *testing.T, v store.Versioned) {
	const n = 10
	ctx := context.Background()
	start, err := v.Save(ctx, "casrace", []byte("start"), store.NoToken)
	if err != nil {
		t.Fatalf("Save: %s", err)
	}
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			_, results[i] = v.Save(ctx, "casrace", []byte{byte(i)}, start)
			wg.Done()
		}(i)
	}
	wg.Wait()
	winner := -1
	for i, err := range results {
		switch err {
		case nil:
			if winner != -1 {
				t.Errorf("both %d and %d won", winner, i)
			}
			winner = i
		case store.ErrPrecondition:
		default:
			t.Errorf("Save: %s", err)
		}
	}
	if winner == -1 {
		t.Fatalf("no Save succeeded")
	}
	data, _, _, _ := v.Load(ctx, "casrace")
	if !bytes.Equal(data, []byte{byte(winner)}) {
		t.Errorf("Load = %v, expected %d", data, winner)
	}
}

// CaseSensitive checks that keys differing only in case are kept apart,
// since ref keys are built from names as given.
func CaseSensitive(t *testing.T, v store.Versioned) {
	ctx := context.Background()
	if _, err := v.Save(ctx, "Docs@main", []byte("upper"), store.NoToken); err != nil {
		t.Fatalf("Save(Docs@main): %s", err)
	}
	if _, err := v.Save(ctx, "docs@main", []byte("lower"), store.NoToken); err != nil {
		t.Fatalf("Save(docs@main): %s", err)
	}
	data, _, _, err := v.Load(ctx, "Docs@main")
	if err != nil || string(data) != "upper" {
		t.Errorf("Load(Docs@main) = %q, %v", data, err)
	}
	data, _, _, err = v.Load(ctx, "docs@main")
	if err != nil || string(data) != "lower" {
		t.Errorf("Load(docs@main) = %q, %v", data, err)
	}
	keys, err := v.ListPrefix(ctx, "Docs@")
	if err != nil || !equal(keys, []string{"Docs@main"}) {
		t.Errorf("ListPrefix(Docs@) = %v, %v", keys, err)
	}
}

func expect(t *testing.T, s store.ROStore, key, value string) {
	t.Helper()
	data, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Errorf("Get(%s): %s", key, err)
		return
	}
	if !ok || string(data) != value {
		t.Errorf("Get(%s) = %q, %v, expected %q", key, data, ok, value)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
