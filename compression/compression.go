// Package compression packs object bodies before they are handed to a
// storage driver. The tag of the algorithm used is stored next to the body so
// a reader never needs to know how the writer was configured.
package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/cznic/zappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Tag identifies a compression algorithm. The values are stored with every
// object; do not renumber them.
type Tag uint8

const (
	None  Tag = 0
	Zappy Tag = 1
	LZ4   Tag = 2
	Zstd  Tag = 3
)

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case Zappy:
		return "zappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", uint8(tag))
}

// Parse returns the tag with the given name. The empty string is None.
func Parse(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "zappy":
		return Zappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("unknown compression %q", name)
}

// MaxSize is an upper bound on the output of Compress for n input bytes.
func MaxSize(n int) int {
	m := lz4.CompressBlockBound(n)
	if z := n + n/6 + 64; z > m {
		m = z
	}
	return m
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compression: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		panic("compression: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress appends the compressed form of src to dst[:0], using dst's
// storage when it is large enough. If the algorithm does not make src
// smaller, src itself is returned with the tag None, so callers must always
// record the returned tag.
func Compress(dst, src []byte, tag Tag) ([]byte, Tag, error) {
	var out []byte
	var err error
	switch tag {
	case None:
		return src, None, nil
	case Zappy:
		out, err = zappy.Encode(dst[:0], src)
	case LZ4:
		bound := lz4.CompressBlockBound(len(src))
		if cap(dst) < bound {
			dst = make([]byte, bound)
		}
		var n int
		n, err = lz4.CompressBlock(src, dst[:bound], nil)
		if n == 0 {
			// incompressible
			return src, None, err
		}
		out = dst[:n]
	case Zstd:
		out = zstdEncoder.EncodeAll(src, dst[:0])
	default:
		return nil, None, fmt.Errorf("unsupported compression %s", tag)
	}
	if err != nil {
		return nil, None, errors.Wrapf(err, "compress %s", tag)
	}
	if len(out) >= len(src) {
		return src, None, nil
	}
	return out, tag, nil
}

// MaxDecodedSize is the largest body Decompress will produce. Writers
// should refuse content beyond it, since it could not be read back.
const MaxDecodedSize = 1 << 30

// lz4 cannot expand a block by more than this factor.
const lz4MaxRatio = 255

// Decompress reverses Compress. size is the length of the original data;
// a mismatch is an error. size comes from stored bytes, so it is checked
// against what src could possibly expand to before anything is allocated.
func Decompress(src []byte, tag Tag, size int) ([]byte, error) {
	if size < 0 || size > MaxDecodedSize {
		return nil, fmt.Errorf("decompress %s: bad size %d", tag, size)
	}
	var out []byte
	var err error
	switch tag {
	case None:
		out = src
	case Zappy:
		// the stream starts with the decoded length
		n, k := binary.Uvarint(src)
		if k <= 0 || n != uint64(size) {
			return nil, fmt.Errorf("decompress %s: header does not match size %d", tag, size)
		}
		out, err = zappy.Decode(nil, src)
	case LZ4:
		if size > lz4MaxRatio*len(src)+16 {
			return nil, fmt.Errorf("decompress %s: %d bytes cannot hold %d", tag, len(src), size)
		}
		out = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(src, out)
		out = out[:n]
	case Zstd:
		// zstd ratios are unbounded, so only reserve a guess
		prealloc := size
		if limit := 8*len(src) + 64; prealloc > limit {
			prealloc = limit
		}
		out, err = zstdDecoder.DecodeAll(src, make([]byte, 0, prealloc))
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", tag)
	}
	if len(out) != size {
		return nil, fmt.Errorf("decompress %s: got %d bytes, expected %d", tag, len(out), size)
	}
	return out, nil
}
