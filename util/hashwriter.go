package util

import (
	"crypto/sha1"
	"hash"

	"github.com/ndlib/chasm/model"
)

// A HashWriter computes the object id of the bytes written to it.
type HashWriter struct {
	sha1 hash.Hash
	n    int64
}

// NewHashWriterPlain returns a HashWriter that does not wrap an output
// stream. It will just compute the checksum of the data written to it.
func NewHashWriterPlain() *HashWriter {
	return &HashWriter{sha1: sha1.New()}
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.sha1.Write(p)
	hw.n += int64(n)
	return n, err
}

// Sum returns the id of everything written so far.
func (hw *HashWriter) Sum() model.Sha1 {
	var h model.Sha1
	copy(h[:], hw.sha1.Sum(nil))
	return h
}

// Size returns the number of bytes written so far.
func (hw *HashWriter) Size() int64 { return hw.n }
