package recorder

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressionType defines the compression algorithm used for archives
type CompressionType int

const (
	// NoCompression writes plain JSON lines
	NoCompression CompressionType = iota
	// ZstdCompression indicates Zstandard compression
	ZstdCompression
)

// DefaultCompression is the default compression algorithm
var DefaultCompression = ZstdCompression

func (c CompressionType) String() string {
	switch c {
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	}
	return fmt.Sprintf("CompressionType(%d)", int(c))
}

// ParseCompression maps a config string to a CompressionType.
func ParseCompression(s string) (CompressionType, error) {
	switch s {
	case "", "zstd":
		return ZstdCompression, nil
	case "none":
		return NoCompression, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewCompressedWriter returns a writer that compresses data before writing.
// Closing it flushes the compressor but leaves w open.
func NewCompressedWriter(w io.Writer, compressionType CompressionType) (io.WriteCloser, error) {
	switch compressionType {
	case NoCompression:
		return nopWriteCloser{w}, nil
	case ZstdCompression:
		return zstd.NewWriter(w)
	}
	return nil, fmt.Errorf("unsupported compression %s", compressionType)
}

// NewCompressedReader returns a reader that decompresses data after reading
func NewCompressedReader(r io.Reader, compressionType CompressionType) (io.ReadCloser, error) {
	switch compressionType {
	case NoCompression:
		return io.NopCloser(r), nil
	case ZstdCompression:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}
	return nil, fmt.Errorf("unsupported compression %s", compressionType)
}
