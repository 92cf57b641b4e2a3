// Package store provides simple, goroutine safe key-value drivers. A chasm
// repository keeps its objects in a Store and its commit refs in a
// Versioned store; everything above that is written once against these
// interfaces.
//
// Probably the most important implementations are the FileSystem and S3. The
// Memory store is useful for testing, and the SQL store keeps everything in
// a database table.
//
// Absence is never an error here. Get and Load report a missing key with a
// false ok value, so callers never need to inspect an error to tell "not
// there" from "could not look".
package store

import (
	"context"
	"errors"
)

// Store defines the basic key-value store holding immutable values.
//
// Since the FileSystem store uses the key as file names, keys should not
// contain forbidden filesystem characters, such as '/'.
type Store interface {
	ROStore

	// Put saves data under key. If overwrite is false and the key already
	// exists, Put returns ErrKeyExists and leaves the existing value alone.
	// The check and the write are atomic with respect to other writers.
	// A value is either stored completely or not at all.
	Put(ctx context.Context, key string, data []byte, overwrite bool) error

	// Delete removes key. It is not an error if key does not exist.
	Delete(ctx context.Context, key string) error
}

// ROStore is the read-only pieces of a Store.
type ROStore interface {
	// Get returns the value for key. ok is false if there is no such key.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// ListPrefix returns all the keys beginning with prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Token is an opaque version of a value in a Versioned store, such as an
// S3 ETag. It changes every time the value is saved.
type Token string

// NoToken is the version of a key which does not exist.
const NoToken Token = ""

// Versioned is a key-value store supporting conditional writes. It is used
// for the mutable parts of a repository.
type Versioned interface {
	// Load returns the value for key and its current version.
	// ok is false if there is no such key.
	Load(ctx context.Context, key string) (data []byte, version Token, ok bool, err error)

	// Save replaces the value for key, but only if its current version is
	// prev. Passing NoToken means the key must not exist yet. If the
	// condition does not hold, ErrPrecondition is returned and nothing is
	// changed. On success the new version is returned.
	Save(ctx context.Context, key string, data []byte, prev Token) (Token, error)

	// ListPrefix returns all the keys beginning with prefix.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("Key already exists")

	// ErrPrecondition means a conditional Save found a different version
	// than expected.
	ErrPrecondition = errors.New("Version does not match")
)

// CanceledByOther reports whether err is a context error that did not come
// from ctx. Work shared between callers, such as a single HEAD or read
// answering several of them, runs under one caller's context; the others
// use this to tell that they should try again under their own.
func CanceledByOther(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
