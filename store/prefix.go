package store

import (
	"context"
	"strings"
)

// NewWithPrefix wraps the store s by one which will prefix all its keys by
// prefix. This provides a way to namespace the keys, and to share the same
// underlying store among a group of repositories.
func NewWithPrefix(s Store, prefix string) Store {
	return prefixstore{s: s, p: prefix}
}

// NewVersionedWithPrefix is NewWithPrefix for a Versioned store.
func NewVersionedWithPrefix(v Versioned, prefix string) Versioned {
	return prefixversioned{v: v, p: prefix}
}

type prefixstore struct {
	s Store  // the store being wrapped
	p string // the prefix for our keys
}

func (ps prefixstore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := ps.s.ListPrefix(ctx, ps.p+prefix)
	return trimKeys(keys, ps.p), err
}

func (ps prefixstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return ps.s.Get(ctx, ps.p+key)
}

func (ps prefixstore) Exists(ctx context.Context, key string) (bool, error) {
	return ps.s.Exists(ctx, ps.p+key)
}

func (ps prefixstore) Put(ctx context.Context, key string, data []byte, overwrite bool) error {
	return ps.s.Put(ctx, ps.p+key, data, overwrite)
}

func (ps prefixstore) Delete(ctx context.Context, key string) error {
	return ps.s.Delete(ctx, ps.p+key)
}

type prefixversioned struct {
	v Versioned
	p string
}

func (pv prefixversioned) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := pv.v.ListPrefix(ctx, pv.p+prefix)
	return trimKeys(keys, pv.p), err
}

func (pv prefixversioned) Load(ctx context.Context, key string) ([]byte, Token, bool, error) {
	return pv.v.Load(ctx, pv.p+key)
}

func (pv prefixversioned) Save(ctx context.Context, key string, data []byte, prev Token) (Token, error) {
	return pv.v.Save(ctx, pv.p+key, data, prev)
}

func trimKeys(keys []string, prefix string) []string {
	var plen = len(prefix)
	var result []string
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			result = append(result, key[plen:])
		}
	}
	return result
}
