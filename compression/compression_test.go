package compression

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	random := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(random)
	var inputs = [][]byte{
		{},
		[]byte("a"),
		bytes.Repeat([]byte("hello chasm "), 500),
		random,
	}
	for _, tag := range []Tag{None, Zappy, LZ4, Zstd} {
		for i, in := range inputs {
			dst := make([]byte, 0, MaxSize(len(in)))
			packed, used, err := Compress(dst, in, tag)
			if err != nil {
				t.Fatalf("%s input %d: %s", tag, i, err.Error())
			}
			if used != tag && used != None {
				t.Errorf("%s input %d: used tag %s", tag, i, used)
			}
			out, err := Decompress(packed, used, len(in))
			if err != nil {
				t.Fatalf("%s input %d: %s", tag, i, err.Error())
			}
			if !bytes.Equal(out, in) {
				t.Errorf("%s input %d: round trip mismatch", tag, i)
			}
		}
	}
}

func TestCompressible(t *testing.T) {
	in := bytes.Repeat([]byte("abcdefgh"), 1000)
	for _, tag := range []Tag{Zappy, LZ4, Zstd} {
		packed, used, err := Compress(nil, in, tag)
		if err != nil {
			t.Fatalf("%s: %s", tag, err.Error())
		}
		if used != tag || len(packed) >= len(in) {
			t.Errorf("%s: got tag %s, %d bytes", tag, used, len(packed))
		}
	}
}

func TestSizeMismatch(t *testing.T) {
	in := bytes.Repeat([]byte("abcdefgh"), 100)
	packed, used, _ := Compress(nil, in, Zstd)
	if _, err := Decompress(packed, used, len(in)+1); err == nil {
		t.Errorf("expected an error for a wrong size")
	}
	if _, err := Decompress(in, Tag(99), len(in)); err == nil {
		t.Errorf("expected an error for an unknown tag")
	}
}

func TestParse(t *testing.T) {
	for _, tag := range []Tag{None, Zappy, LZ4, Zstd} {
		got, err := Parse(tag.String())
		if err != nil || got != tag {
			t.Errorf("Parse(%s) = %s, %v", tag, got, err)
		}
	}
	if _, err := Parse("gzip"); err == nil {
		t.Errorf("expected an error for gzip")
	}
}

func TestBadSize(t *testing.T) {
	body := []byte{1, 2, 3}
	for _, tag := range []Tag{None, Zappy, LZ4, Zstd} {
		for _, size := range []int{-1, MaxDecodedSize + 1, 1 << 29} {
			out, err := Decompress(body, tag, size)
			if err == nil {
				t.Errorf("Decompress(%s, %d) = %d bytes, expected error", tag, size, len(out))
			}
		}
	}
}
