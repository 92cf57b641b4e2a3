package store

import (
	"context"
	"sort"
	"testing"
)

func TestPrefixSmoke(t *testing.T) {
	var memoryitems = []string{
		"qwerty",
		"zabc",
		"zzed",
	}
	var prefixlists = []struct {
		input  string
		result []string
	}{
		{"", []string{"abc", "zed"}},
		{"a", []string{"abc"}},
		{"b", nil},
		{"z", []string{"zed"}},
	}
	ctx := context.Background()
	m := NewMemory()
	ps := NewWithPrefix(m, "z")

	add(t, ps, "abc", "text 1")
	add(t, ps, "zed", "text 2")

	// add one to the memory store
	add(t, m, "qwerty", "text 3")

	for _, test := range prefixlists {
		t.Logf("doing prefix '%s'", test.input)
		ids, err := ps.ListPrefix(ctx, test.input)
		if err != nil {
			t.Errorf("Received error %s", err.Error())
		}
		sort.Strings(ids)
		if !equal(ids, test.result) {
			t.Errorf("Received ids %v", ids)
		}
	}

	ids, err := m.ListPrefix(ctx, "")
	if err != nil {
		t.Errorf("Received error %s", err.Error())
	}
	sort.Strings(ids)
	if !equal(ids, memoryitems) {
		t.Errorf("Received ids %v", ids)
	}

	data, ok, _ := ps.Get(ctx, "qwerty")
	if ok {
		t.Errorf("prefix store can see unprefixed key, got %q", data)
	}
}

func TestVersionedPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := NewVersionedWithPrefix(m, "a/")
	b := NewVersionedWithPrefix(m, "b/")

	if _, err := a.Save(ctx, "main", []byte("1"), NoToken); err != nil {
		t.Fatal(err)
	}
	// the same key under another prefix is independent
	if _, err := b.Save(ctx, "main", []byte("2"), NoToken); err != nil {
		t.Fatal(err)
	}
	data, _, ok, _ := a.Load(ctx, "main")
	if !ok || string(data) != "1" {
		t.Errorf("Load = %q, %v", data, ok)
	}
	keys, _ := b.ListPrefix(ctx, "")
	if !equal(keys, []string{"main"}) {
		t.Errorf("ListPrefix = %v", keys)
	}
}

func add(t *testing.T, s Store, id string, data string) {
	t.Logf("add(%s,%.10s)", id, data)
	err := s.Put(context.Background(), id, []byte(data), false)
	if err != nil {
		t.Fatalf("Couldn't make %s, %s", id, err.Error())
	}
}
