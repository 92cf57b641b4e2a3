package model

import (
	"sort"
	"time"
)

// Audit records who did something and when. The timestamp keeps its zone
// offset.
type Audit struct {
	Name      string
	Timestamp time.Time
}

// EmptyAudit is the zero Audit.
var EmptyAudit Audit

// NewAudit is a convenience for Audit{name, when}.
func NewAudit(name string, when time.Time) Audit {
	return Audit{Name: name, Timestamp: when}
}

// IsEmpty is true for the zero Audit.
func (a Audit) IsEmpty() bool {
	return a.Name == "" && a.Timestamp.IsZero()
}

// Equal compares the name, the instant and the zone offset.
func (a Audit) Equal(o Audit) bool {
	if a.Name != o.Name || !a.Timestamp.Equal(o.Timestamp) {
		return false
	}
	_, off1 := a.Timestamp.Zone()
	_, off2 := o.Timestamp.Zone()
	return off1 == off2
}

// A Commit is a snapshot: a tree, the commits it descends from, and who made
// it. ID is not part of the commit body; it is filled in by the repository
// after the commit is written or read.
type Commit struct {
	ID        CommitID
	ParentIDs []CommitID
	TreeID    TreeID
	Author    Audit
	Committer Audit
	Message   string
}

// NewCommit returns a commit whose parent list is deduplicated and sorted.
func NewCommit(parents []CommitID, tree TreeID, author, committer Audit, message string) Commit {
	return Commit{
		ParentIDs: CanonicalParents(parents),
		TreeID:    tree,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
}

// CanonicalParents returns a new slice with the duplicates of ids removed,
// sorted by their bytes. It returns nil for an empty input.
func CanonicalParents(ids []CommitID) []CommitID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[CommitID]struct{}, len(ids))
	result := make([]CommitID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Compare(result[j]) < 0
	})
	return result
}

// Equal compares the commit bodies. The ID field is ignored, and parents are
// compared as sets.
func (c Commit) Equal(o Commit) bool {
	if c.TreeID != o.TreeID || c.Message != o.Message {
		return false
	}
	if !c.Author.Equal(o.Author) || !c.Committer.Equal(o.Committer) {
		return false
	}
	p1 := CanonicalParents(c.ParentIDs)
	p2 := CanonicalParents(o.ParentIDs)
	if len(p1) != len(p2) {
		return false
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			return false
		}
	}
	return true
}
