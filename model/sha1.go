package model

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Size is the number of bytes in a Sha1.
const Size = sha1.Size

// Sha1 is the identifier of every stored object.
type Sha1 [Size]byte

// EmptySha1 is the zero digest. It names no object.
var EmptySha1 Sha1

// Hash returns the Sha1 of data.
func Hash(data []byte) Sha1 {
	return Sha1(sha1.Sum(data))
}

// ParseSha1 decodes a 40 character hex string.
func ParseSha1(s string) (Sha1, error) {
	var h Sha1
	if len(s) != 2*Size {
		return h, fmt.Errorf("sha1 %q: expected %d hex characters", s, 2*Size)
	}
	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return h, fmt.Errorf("sha1 %q: %s", s, err.Error())
	}
	return h, nil
}

// Sha1FromBytes copies a 20 byte slice into a Sha1.
func Sha1FromBytes(b []byte) (Sha1, error) {
	var h Sha1
	if len(b) != Size {
		return h, fmt.Errorf("sha1: expected %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Sha1) String() string { return hex.EncodeToString(h[:]) }

// IsEmpty is true for the zero digest.
func (h Sha1) IsEmpty() bool { return h == EmptySha1 }

// Bytes returns a copy of the digest.
func (h Sha1) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// Compare orders digests by their bytes.
func (h Sha1) Compare(other Sha1) int {
	return bytes.Compare(h[:], other[:])
}

// MarshalText encodes the digest as lower case hex.
func (h Sha1) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex digest.
func (h *Sha1) UnmarshalText(text []byte) error {
	v, err := ParseSha1(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// CommitID is the Sha1 of a serialized commit.
type CommitID Sha1

// TreeID is the Sha1 of a serialized tree.
type TreeID Sha1

// EmptyCommitID and EmptyTreeID mean "no object".
var (
	EmptyCommitID CommitID
	EmptyTreeID   TreeID
)

func (c CommitID) Sha1() Sha1             { return Sha1(c) }
func (c CommitID) IsEmpty() bool          { return Sha1(c).IsEmpty() }
func (c CommitID) String() string         { return Sha1(c).String() }
func (c CommitID) Compare(o CommitID) int { return Sha1(c).Compare(Sha1(o)) }

func (t TreeID) Sha1() Sha1     { return Sha1(t) }
func (t TreeID) IsEmpty() bool  { return Sha1(t).IsEmpty() }
func (t TreeID) String() string { return Sha1(t).String() }

// ParseCommitID decodes a hex commit id.
func ParseCommitID(s string) (CommitID, error) {
	h, err := ParseSha1(s)
	return CommitID(h), err
}

// ParseTreeID decodes a hex tree id.
func ParseTreeID(s string) (TreeID, error) {
	h, err := ParseSha1(s)
	return TreeID(h), err
}
