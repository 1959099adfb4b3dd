// Package precompress builds the compressed twins the delivery server
// negotiates: for each compressible source file it writes a sibling
// <name>.gz (and optionally <name>.zst) whose decompressed bytes match
// the source exactly. Output is deterministic, so rebuilding unchanged
// sources produces byte-identical twins.
package precompress

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/louisbranch/scentshelf/internal/compression"
	"github.com/louisbranch/scentshelf/internal/platform/timeouts"
)

// sourceExt is the extension scanned for under an asset root. Explicit
// file arguments bypass the filter.
const sourceExt = ".json"

// Config holds configuration for the precompress tool.
type Config struct {
	Root  string
	Files []string
	Level int
	Zstd  bool
	Check bool
	Force bool
	Watch bool
}

// ParseConfig parses CLI flags into a Config. Positional arguments are
// explicit source files; they are mutually exclusive with -root.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Level: compression.DefaultLevel}

	fs.StringVar(&cfg.Root, "root", "", "asset root to scan for compressible files")
	fs.IntVar(&cfg.Level, "level", cfg.Level, "compression level (1-9)")
	fs.BoolVar(&cfg.Zstd, "zstd", false, "also build zstd twins")
	fs.BoolVar(&cfg.Check, "check", false, "verify twins without writing")
	fs.BoolVar(&cfg.Force, "force", false, "rebuild twins even when up to date")
	fs.BoolVar(&cfg.Watch, "watch", false, "watch the root and rebuild on change")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Files = fs.Args()

	if strings.TrimSpace(cfg.Root) == "" && len(cfg.Files) == 0 {
		return Config{}, errors.New("root or at least one file is required")
	}
	if strings.TrimSpace(cfg.Root) != "" && len(cfg.Files) > 0 {
		return Config{}, errors.New("root and explicit files are mutually exclusive")
	}
	if cfg.Level < 1 || cfg.Level > 9 {
		return Config{}, errors.New("level must be between 1 and 9")
	}
	if cfg.Watch && strings.TrimSpace(cfg.Root) == "" {
		return Config{}, errors.New("watch requires a root directory")
	}
	if cfg.Watch && cfg.Check {
		return Config{}, errors.New("check cannot run in watch mode")
	}

	return cfg, nil
}

// Run executes the precompress tool using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	if strings.TrimSpace(cfg.Root) == "" && len(cfg.Files) == 0 {
		return errors.New("root or at least one file is required")
	}
	if cfg.Level == 0 {
		cfg.Level = compression.DefaultLevel
	}

	encodings := []compression.Encoding{compression.Gzip}
	if cfg.Zstd {
		encodings = append(encodings, compression.Zstd)
	}

	if cfg.Check {
		return runCheck(cfg, encodings, out)
	}
	if err := compressPass(ctx, cfg, encodings, out); err != nil {
		return err
	}
	if cfg.Watch {
		return watchLoop(ctx, cfg, encodings, out)
	}
	return nil
}

func compressPass(ctx context.Context, cfg Config, encodings []compression.Encoding, out io.Writer) error {
	sources, err := collectSources(cfg)
	if err != nil {
		return err
	}

	var built, skipped int
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, enc := range encodings {
			wrote, err := compressFile(src, enc, cfg.Level, cfg.Force)
			if err != nil {
				return fmt.Errorf("compress %s: %w", src, err)
			}
			if wrote {
				built++
				fmt.Fprintf(out, "wrote %s\n", src+enc.Suffix)
			} else {
				skipped++
			}
		}
	}

	fmt.Fprintf(out, "built %d twin(s), %d up to date\n", built, skipped)
	return nil
}

func collectSources(cfg Config) ([]string, error) {
	if len(cfg.Files) > 0 {
		files := make([]string, 0, len(cfg.Files))
		for _, file := range cfg.Files {
			if compression.IsTwinPath(file) {
				return nil, fmt.Errorf("%s is already a compressed twin", file)
			}
			info, err := os.Stat(file)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", file, err)
			}
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("%s is not a regular file", file)
			}
			files = append(files, file)
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if compressibleSource(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", cfg.Root, err)
	}
	sort.Strings(files)
	return files, nil
}

// compressibleSource filters scan and watch candidates. Twins and temp
// files must never match, or twin placement would retrigger the pass.
func compressibleSource(path string) bool {
	if compression.IsTwinPath(path) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), sourceExt)
}

// compressFile writes the twin for one source file. Twins at least as
// new as their source are skipped unless force is set.
func compressFile(src string, enc compression.Encoding, level int, force bool) (bool, error) {
	twin := src + enc.Suffix
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	if !force {
		if twinInfo, err := os.Stat(twin); err == nil && !twinInfo.ModTime().Before(srcInfo.ModTime()) {
			return false, nil
		}
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("read source: %w", err)
	}
	var buf bytes.Buffer
	w, err := enc.NewWriter(&buf, level)
	if err != nil {
		return false, fmt.Errorf("new %s writer: %w", enc.Name, err)
	}
	if _, err := w.Write(data); err != nil {
		return false, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return false, fmt.Errorf("flush %s writer: %w", enc.Name, err)
	}

	if err := writeTwinAtomic(twin, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// writeTwinAtomic places the twin with a temp file and rename so a
// serving process never observes a half-written twin.
func writeTwinAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func runCheck(cfg Config, encodings []compression.Encoding, out io.Writer) error {
	sources, err := collectSources(cfg)
	if err != nil {
		return err
	}

	var findings int
	for _, src := range sources {
		for _, enc := range encodings {
			finding, err := checkTwin(src, enc)
			if err != nil {
				return fmt.Errorf("check %s: %w", src, err)
			}
			if finding != "" {
				findings++
				fmt.Fprintf(out, "%s: %s\n", src+enc.Suffix, finding)
			}
		}
	}

	if findings > 0 {
		return fmt.Errorf("%d twin(s) failed verification", findings)
	}
	fmt.Fprintf(out, "verified %d twin(s)\n", len(sources)*len(encodings))
	return nil
}

// checkTwin reports at most one finding per twin: missing, content
// mismatch, or an mtime older than the source.
func checkTwin(src string, enc compression.Encoding) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	twin := src + enc.Suffix
	twinInfo, err := os.Stat(twin)
	if errors.Is(err, fs.ErrNotExist) {
		return "missing twin", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat twin: %w", err)
	}

	original, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	compressed, err := os.Open(twin)
	if err != nil {
		return "", fmt.Errorf("open twin: %w", err)
	}
	defer compressed.Close()

	r, err := enc.NewReader(compressed)
	if err != nil {
		return "unreadable twin: " + err.Error(), nil
	}
	defer r.Close()
	decompressed, err := io.ReadAll(r)
	if err != nil {
		return "unreadable twin: " + err.Error(), nil
	}

	if !bytes.Equal(decompressed, original) {
		return "decompressed twin differs from source", nil
	}
	if twinInfo.ModTime().Before(srcInfo.ModTime()) {
		return "twin is older than its source", nil
	}
	return "", nil
}

// watchLoop rebuilds the tree after source changes, coalescing event
// bursts behind one debounce window.
func watchLoop(ctx context.Context, cfg Config, encodings []compression.Encoding, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, cfg.Root); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s\n", cfg.Root)

	var debounce *time.Timer
	var rebuild <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatchDirs(watcher, event.Name); err != nil {
						fmt.Fprintf(out, "watch %s: %v\n", event.Name, err)
					}
					continue
				}
			}
			if !watchRelevant(event) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(timeouts.WatchDebounce)
				rebuild = debounce.C
			} else {
				debounce.Reset(timeouts.WatchDebounce)
			}

		case <-rebuild:
			debounce = nil
			rebuild = nil
			if err := compressPass(ctx, cfg, encodings, out); err != nil {
				fmt.Fprintf(out, "rebuild failed: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "watch error: %v\n", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func watchRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return compressibleSource(event.Name)
}
