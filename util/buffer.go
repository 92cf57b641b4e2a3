package util

import "sync"

// bufferPool holds spare byte slices for WithBuffer. It is shared between
// all callers.
var bufferPool sync.Pool

// WithBuffer calls fn with a zero length slice having a capacity of at
// least n bytes. The slice is returned to a shared pool when fn returns, on
// every path, so fn must not retain it or anything aliasing it.
func WithBuffer(n int, fn func(buf []byte) error) error {
	buf := getbuf(n)
	defer bufferPool.Put(buf)
	return fn((*buf)[:0])
}

func getbuf(n int) *[]byte {
	b, ok := bufferPool.Get().(*[]byte)
	if !ok || cap(*b) < n {
		s := make([]byte, 0, n)
		return &s
	}
	return b
}
