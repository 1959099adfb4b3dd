// Package cataloglint validates the catalog payload (and optionally the
// image mapping) before deployment: structural requirements the browsing
// page depends on, plus normalization checks that keep brand and name
// comparisons stable across data refreshes.
package cataloglint

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/louisbranch/scentshelf/internal/catalog"
)

// minYear bounds the launch-year check; nothing in the catalog predates
// modern perfumery.
const minYear = 1700

// Config holds configuration for the catalog linter.
type Config struct {
	Catalog string
	Images  string
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config

	fs.StringVar(&cfg.Catalog, "catalog", "", "catalog JSON path")
	fs.StringVar(&cfg.Images, "images", "", "image mapping path to cross-check")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Catalog) == "" {
		return Config{}, errors.New("catalog is required")
	}

	return cfg, nil
}

// Run executes the linter. Findings are written to out and any finding
// fails the run, so deploy hooks can gate on the exit code.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = ctx
	if out == nil {
		out = io.Discard
	}

	if strings.TrimSpace(cfg.Catalog) == "" {
		return errors.New("catalog is required")
	}

	entries, err := catalog.LoadEntries(cfg.Catalog)
	if err != nil {
		return err
	}
	findings := lintEntries(entries)

	if strings.TrimSpace(cfg.Images) != "" {
		images, err := catalog.LoadImages(cfg.Images)
		if err != nil {
			return err
		}
		findings = append(findings, lintImages(images, entries)...)
	}

	for _, finding := range findings {
		fmt.Fprintln(out, finding)
	}
	if len(findings) > 0 {
		return fmt.Errorf("%d finding(s)", len(findings))
	}
	fmt.Fprintf(out, "catalog ok: %d entries\n", len(entries))
	return nil
}

func lintEntries(entries []catalog.Entry) []string {
	var findings []string
	seen := make(map[string]int, len(entries))
	maxYear := time.Now().Year() + 1

	for i, entry := range entries {
		where := fmt.Sprintf("entry %d (%s)", i, entry.ID)

		if strings.TrimSpace(entry.ID) == "" {
			findings = append(findings, where+": id is required")
		} else if first, dup := seen[entry.ID]; dup {
			findings = append(findings, fmt.Sprintf("%s: duplicate id, first used by entry %d", where, first))
		} else {
			seen[entry.ID] = i
		}

		if strings.TrimSpace(entry.Name) == "" {
			findings = append(findings, where+": name is required")
		} else if !norm.NFC.IsNormalString(entry.Name) {
			findings = append(findings, where+": name is not NFC normalized")
		}

		if strings.TrimSpace(entry.Brand) == "" {
			findings = append(findings, where+": brand is required")
		} else if !norm.NFC.IsNormalString(entry.Brand) {
			findings = append(findings, where+": brand is not NFC normalized")
		}

		if entry.Year != 0 && (entry.Year < minYear || entry.Year > maxYear) {
			findings = append(findings, fmt.Sprintf("%s: year %d is out of range", where, entry.Year))
		}
		if entry.URL != "" && !absoluteHTTP(entry.URL) {
			findings = append(findings, fmt.Sprintf("%s: url %q is not absolute http(s)", where, entry.URL))
		}
		for j, img := range entry.ImageURLs {
			if !absoluteHTTP(img) {
				findings = append(findings, fmt.Sprintf("%s: image url %d %q is not absolute http(s)", where, j, img))
			}
		}
	}
	return findings
}

func lintImages(images catalog.Images, entries []catalog.Entry) []string {
	ids := make(map[string]bool, len(entries))
	for _, entry := range entries {
		ids[entry.ID] = true
	}

	keys := make([]string, 0, len(images))
	for key := range images {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var findings []string
	for _, key := range keys {
		if !ids[key] {
			findings = append(findings, fmt.Sprintf("images key %q does not match any catalog entry", key))
		}
		for i, u := range images[key] {
			if !absoluteHTTP(u) {
				findings = append(findings, fmt.Sprintf("images[%s][%d]: url %q is not absolute http(s)", key, i, u))
			}
		}
	}
	return findings
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
