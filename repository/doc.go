/*
Package repository is the content addressed object store. Blobs, trees and
commits are kept in a store.Store under the hex SHA-1 of their bytes, and
commit refs, the only mutable values, are kept in a store.Versioned and
updated with compare-and-swap.

A Repo is built from one pair of drivers. Everything above reading and
writing single objects (trees, commits, resolving a ref down to its tree) is
written once, in terms of those object operations, and is shared by Repo and
by Hybrid, which chains several repositories together nearest first.

Absence is never an error. A read of something which is not there returns a
nil result and a nil error. The errors returned fall into a few kinds:

	*ValidationError   a bad argument, found before any I/O
	*ConcurrencyError  a commit ref changed underneath a WriteCommitRef
	*CorruptionError   stored bytes which do not decode or do not match their id
	*FanoutError       a hybrid write which failed on some tiers

Anything else comes from a driver and is wrapped with github.com/pkg/errors,
so errors.Cause returns the driver's error. Nothing is retried here.
*/
package repository
