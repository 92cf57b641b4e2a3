package model

import (
	"fmt"
	"strings"
	"unicode"
)

// A CommitRef points a branch at a commit. Refs are grouped by a name, so
// the full address of a ref is (name, branch).
type CommitRef struct {
	Branch   string
	CommitID CommitID
}

// NewCommitRef is a convenience for CommitRef{branch, id}.
func NewCommitRef(branch string, id CommitID) CommitRef {
	return CommitRef{Branch: branch, CommitID: id}
}

func (r CommitRef) String() string {
	return fmt.Sprintf("%s@%s", r.Branch, r.CommitID)
}

// Metadata is carried with a blob but is not part of its identity.
type Metadata struct {
	ContentType string
	Filename    string
}

// A Blob is stored content together with its id.
type Blob struct {
	ID       Sha1
	Content  []byte
	Metadata Metadata
}

// InvalidError reports a malformed argument.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateName checks a ref name or branch. Empty and whitespace only values
// are rejected, as are control characters.
func ValidateName(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return &InvalidError{Field: field, Reason: "empty"}
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return &InvalidError{Field: field, Reason: "contains control characters"}
		}
	}
	return nil
}
