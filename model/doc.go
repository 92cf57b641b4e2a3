/*
Package model defines the value types of a chasm repository.

Blobs, trees and commits are content addressed: each is identified by the
SHA-1 of its canonical bytes and never changes once written. The only
mutable entity is a CommitRef, a named pointer to a commit which is addressed
by (name, branch) instead of by hash.

A TreeNodeMap holds the entries of a tree keyed by name. Names are unique
within a map; adding a second entry with an existing name is an error.
Serializers always see the entries in name order, so two equal maps encode to
the same bytes.

A Commit treats its parents as a set. NewCommit removes duplicates and sorts
the remaining ids by their bytes, so the order parents are given in never
changes the commit id.
*/
package model
