package assetstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/scentshelf/internal/compression"
)

// preloadPayloads walks the root once and reads every compressible payload
// and its twins into memory. Symlinks are skipped; they stay subject to the
// canonicalize-and-contain check on the disk path.
func (s *Store) preloadPayloads() error {
	cache := make(map[string][]byte)
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !s.preloadable(p) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		cache[p] = data
		return nil
	})
	if err != nil {
		return err
	}
	s.preload = cache
	return nil
}

// preloadable reports whether a file belongs in the preload cache: a
// compressible payload or a twin of one.
func (s *Store) preloadable(p string) bool {
	for _, enc := range compression.Registered() {
		if strings.HasSuffix(p, enc.Suffix) {
			p = strings.TrimSuffix(p, enc.Suffix)
			break
		}
	}
	return s.compressible[strings.ToLower(filepath.Ext(p))]
}
