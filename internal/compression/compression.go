// Package compression defines the content encodings the delivery pipeline
// supports: the codec used to build precompressed twins, the file suffix the
// twins are stored under, and the Accept-Encoding negotiation that selects a
// representation at serve time.
package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultLevel is the compression level used when the caller does not pick
// one. Twins are built once and served many times, so the default favors
// ratio over speed.
const DefaultLevel = gzip.BestCompression

// Encoding is one supported content coding: its HTTP token, the suffix its
// precompressed twins are stored under, and its codec constructors.
type Encoding struct {
	// Name is the Accept-Encoding / Content-Encoding token.
	Name string
	// Suffix is appended to a source filename to name its twin.
	Suffix string
	// NewWriter returns a writer that compresses to w at the given level.
	NewWriter func(w io.Writer, level int) (io.WriteCloser, error)
	// NewReader returns a reader that decompresses from r.
	NewReader func(r io.Reader) (io.ReadCloser, error)
}

// Gzip is the primary encoding. The stream header carries no file name or
// modification time, so compressing unchanged input reproduces identical
// bytes.
var Gzip = Encoding{
	Name:   "gzip",
	Suffix: ".gz",
	NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
		zw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		return zw, nil
	},
	NewReader: func(r io.Reader) (io.ReadCloser, error) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	},
}

// Zstd is the secondary encoding. The encoder is pinned to one goroutine so
// rebuilding unchanged input reproduces identical bytes.
var Zstd = Encoding{
	Name:   "zstd",
	Suffix: ".zst",
	NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	},
	NewReader: func(r io.Reader) (io.ReadCloser, error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	},
}

// Registered returns the supported encodings in server preference order,
// best ratio first.
func Registered() []Encoding {
	return []Encoding{Zstd, Gzip}
}

// Lookup finds a registered encoding by its HTTP token.
func Lookup(name string) (Encoding, bool) {
	for _, enc := range Registered() {
		if strings.EqualFold(name, enc.Name) {
			return enc, true
		}
	}
	return Encoding{}, false
}

// IsTwinPath reports whether path names a precompressed twin rather than a
// source file.
func IsTwinPath(path string) bool {
	for _, enc := range Registered() {
		if strings.HasSuffix(path, enc.Suffix) {
			return true
		}
	}
	return false
}
