// Package assetstore resolves request paths to immutable files under a
// single asset root and picks the representation to serve from the
// precompressed twins stored beside them. The store holds no mutable state:
// every request re-resolves from disk, except for the optional preload cache
// which is filled once at construction and never written again.
package assetstore

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// EntryPage is the bundle entry page extensionless request paths resolve to.
const EntryPage = "index.html"

// ErrNotFound reports a request path with no servable file: missing files,
// directories, and paths that escape the root all resolve to it.
var ErrNotFound = errors.New("asset not found")

// Asset is one resolvable file under the root.
type Asset struct {
	// Path is the canonical filesystem path of the original file.
	Path string
	// ContentType derives from the logical request path, not the file the
	// path resolves to.
	ContentType string
	// Size is the original file's size in bytes.
	Size int64
	// Compressible marks logical paths eligible for twin negotiation.
	Compressible bool
}

// Options configures a Store.
type Options struct {
	// CompressibleExts lists the logical extensions eligible for
	// precompressed-twin negotiation. Defaults to .json.
	CompressibleExts []string
	// Preload reads every compressible payload and its twins into memory at
	// construction. The cache is read-only afterwards; files added later are
	// still served from disk.
	Preload bool
}

// Store serves assets from one canonicalized root directory.
type Store struct {
	root         string
	compressible map[string]bool
	preload      map[string][]byte
}

// Open validates the asset root and builds a store over it.
func Open(root string, opts Options) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("asset root is required")
	}
	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve asset root: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat asset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", root)
	}

	exts := opts.CompressibleExts
	if len(exts) == 0 {
		exts = []string{".json"}
	}
	compressible := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		compressible[ext] = true
	}

	s := &Store{root: canonical, compressible: compressible}
	if opts.Preload {
		if err := s.preloadPayloads(); err != nil {
			return nil, fmt.Errorf("preload assets: %w", err)
		}
	}
	return s, nil
}

// Root returns the canonicalized asset root.
func (s *Store) Root() string {
	return s.root
}

// IsEntryPath reports whether a request path resolves to the entry page:
// the root itself and any extensionless path route there, so client-side
// navigation deep links reload into the application.
func IsEntryPath(urlPath string) bool {
	return path.Ext(path.Clean("/"+urlPath)) == ""
}

// Resolve maps a request path to an asset under the root. The path is
// cleaned in URL space first, extensionless paths route to the entry page,
// and the final filesystem path is canonicalized and checked for descent
// from the root, so neither dot-dot segments nor symlinks can reach outside
// the store.
func (s *Store) Resolve(urlPath string) (Asset, error) {
	logical := path.Clean("/" + urlPath)
	if path.Ext(logical) == "" {
		logical = "/" + EntryPage
	}
	fsPath := filepath.Join(s.root, filepath.FromSlash(logical))

	if data, ok := s.preload[fsPath]; ok {
		return s.asset(fsPath, logical, int64(len(data))), nil
	}

	canonical, err := filepath.EvalSymlinks(fsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, fmt.Errorf("resolve %s: %w", logical, err)
	}
	if !s.contains(canonical) {
		return Asset{}, ErrNotFound
	}
	info, err := os.Stat(canonical)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, fmt.Errorf("stat %s: %w", logical, err)
	}
	if !info.Mode().IsRegular() {
		return Asset{}, ErrNotFound
	}
	return s.asset(canonical, logical, info.Size()), nil
}

func (s *Store) asset(fsPath, logical string, size int64) Asset {
	ext := strings.ToLower(path.Ext(logical))
	return Asset{
		Path:         fsPath,
		ContentType:  contentType(ext),
		Size:         size,
		Compressible: s.compressible[ext],
	}
}

// contains reports whether the canonical path descends from the root.
func (s *Store) contains(canonical string) bool {
	rel, err := filepath.Rel(s.root, canonical)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func contentType(ext string) string {
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}
