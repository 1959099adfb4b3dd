package assetstore

import (
	"bytes"
	"io"
	"os"

	"github.com/louisbranch/scentshelf/internal/compression"
)

// Representation is the outcome of content negotiation for one request: the
// exact bytes to stream and the headers describing them. ContentType always
// names the logical asset's type; Encoding and Size describe the bytes
// actually sent.
type Representation struct {
	// Path is the filesystem path of the bytes to serve.
	Path string
	// Encoding is the Content-Encoding token, empty for the original.
	Encoding string
	// ContentType is the logical asset's media type.
	ContentType string
	// Size is the byte count of this representation.
	Size int64

	content   []byte
	preloaded bool
}

// Open returns a reader over the representation's bytes: the preloaded copy
// when the store holds one, otherwise the file on disk.
func (r Representation) Open() (io.ReadCloser, error) {
	if r.preloaded {
		return io.NopCloser(bytes.NewReader(r.content)), nil
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Negotiate picks the representation to serve for an asset given the
// request's Accept-Encoding header. The first registered encoding the
// client accepts whose twin exists beside the original wins; a missing twin
// falls back silently to the original bytes.
func (s *Store) Negotiate(asset Asset, acceptEncoding string) Representation {
	if asset.Compressible {
		for _, enc := range compression.Registered() {
			if !compression.Accepts(acceptEncoding, enc.Name) {
				continue
			}
			twin := asset.Path + enc.Suffix
			if data, ok := s.preload[twin]; ok {
				return Representation{
					Path:        twin,
					Encoding:    enc.Name,
					ContentType: asset.ContentType,
					Size:        int64(len(data)),
					content:     data,
					preloaded:   true,
				}
			}
			info, err := os.Stat(twin)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			return Representation{
				Path:        twin,
				Encoding:    enc.Name,
				ContentType: asset.ContentType,
				Size:        info.Size(),
			}
		}
	}

	rep := Representation{
		Path:        asset.Path,
		ContentType: asset.ContentType,
		Size:        asset.Size,
	}
	if data, ok := s.preload[asset.Path]; ok {
		rep.content = data
		rep.preloaded = true
	}
	return rep
}
