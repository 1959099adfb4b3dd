// Package imagescrape refreshes the image mapping served beside the
// catalog: for each entry whose mapping is missing or empty it fetches
// the entry's detail page and extracts the bottle image URL. The network
// behavior is deliberately slow and irregular; the catalog site throttles
// clients that look like batch jobs.
package imagescrape

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/louisbranch/scentshelf/internal/catalog"
)

const (
	defaultDelay        = 2 * time.Second
	defaultSaveEvery    = 20
	defaultMaxRetries   = 2
	defaultFailurePause = time.Minute
	defaultRetryWaitMin = 10 * time.Second
	defaultRetryWaitMax = 40 * time.Second

	// failureRunLimit is how many consecutive empty scrapes trigger the
	// long pause; a run of failures usually means the session is burned.
	failureRunLimit = 5
)

// Config holds configuration for the image scraper. The tuning fields
// have no flags; zero values fall back to defaults, and MaxRetries < 0
// disables retries.
type Config struct {
	Catalog   string
	Out       string
	Delay     time.Duration
	SaveEvery int
	Limit     int

	MaxRetries   int
	FailurePause time.Duration
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Delay:     defaultDelay,
		SaveEvery: defaultSaveEvery,
	}

	fs.StringVar(&cfg.Catalog, "catalog", "", "catalog JSON path")
	fs.StringVar(&cfg.Out, "out", "", "image mapping output path")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "base delay between page fetches")
	fs.IntVar(&cfg.SaveEvery, "save-every", cfg.SaveEvery, "checkpoint the mapping after this many fetches")
	fs.IntVar(&cfg.Limit, "limit", 0, "stop after this many fetches (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Catalog) == "" {
		return Config{}, errors.New("catalog is required")
	}
	if strings.TrimSpace(cfg.Out) == "" {
		return Config{}, errors.New("out is required")
	}
	if cfg.Delay < 0 {
		return Config{}, errors.New("delay cannot be negative")
	}
	if cfg.SaveEvery < 1 {
		return Config{}, errors.New("save-every must be positive")
	}

	return cfg, nil
}

// Run executes the scraper using the provided Config. Page failures are
// recorded as empty mappings and retried on the next run; only setup and
// save failures abort. Cancellation checkpoints progress and returns nil.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	if strings.TrimSpace(cfg.Catalog) == "" {
		return errors.New("catalog is required")
	}
	if strings.TrimSpace(cfg.Out) == "" {
		return errors.New("out is required")
	}
	applyDefaults(&cfg)

	entries, err := catalog.LoadEntries(cfg.Catalog)
	if err != nil {
		return err
	}
	images, err := catalog.LoadImages(cfg.Out)
	if err != nil {
		return err
	}

	pending := pendingEntries(entries, images)
	// Shuffled so runs never walk the catalog in a recognizable order.
	rand.Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })

	fmt.Fprintf(out, "%d of %d entries need images\n", len(pending), len(entries))
	if len(pending) == 0 {
		return nil
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	warmup(ctx, client, pending[0].URL, out)
	if err := sleep(ctx, requestJitter(cfg.Delay)); err != nil {
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(cfg.Delay), 1)
	var scraped, found, consecutiveFails int
	for _, entry := range pending {
		if cfg.Limit > 0 && scraped >= cfg.Limit {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if err := sleep(ctx, requestJitter(cfg.Delay)); err != nil {
			break
		}

		urls := fetchEntryImages(ctx, client, entry.URL)
		if urls == nil {
			// Record the attempt as an empty list; pendingEntries picks
			// it up again on the next run.
			urls = []string{}
		}
		images[entry.ID] = urls
		scraped++

		if len(urls) > 0 {
			found++
			consecutiveFails = 0
		} else {
			consecutiveFails++
			if consecutiveFails >= failureRunLimit {
				pause := failurePause(cfg.FailurePause)
				fmt.Fprintf(out, "%d consecutive failures, pausing %s\n", consecutiveFails, pause.Round(time.Second))
				if err := sleep(ctx, pause); err != nil {
					break
				}
				consecutiveFails = 0
			}
		}

		if scraped%cfg.SaveEvery == 0 {
			if err := catalog.SaveImages(cfg.Out, images); err != nil {
				return fmt.Errorf("checkpoint mapping: %w", err)
			}
			fmt.Fprintf(out, "checkpoint: %d/%d scraped, %d with images\n", scraped, len(pending), found)
		}
	}

	if err := catalog.SaveImages(cfg.Out, images); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	fmt.Fprintf(out, "scraped %d entries, %d with images, saved %s\n", scraped, found, cfg.Out)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = defaultSaveEvery
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = defaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.FailurePause <= 0 {
		cfg.FailurePause = defaultFailurePause
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaultRetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = defaultRetryWaitMax
	}
}

// pendingEntries selects entries that have a detail page URL and no
// resolved images yet. Recorded empty attempts count as pending, so
// past failures are retried.
func pendingEntries(entries []catalog.Entry, images catalog.Images) []catalog.Entry {
	seen := make(map[string]bool, len(entries))
	var pending []catalog.Entry
	for _, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.URL) == "" {
			continue
		}
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		if images.Resolved(entry.ID) {
			continue
		}
		pending = append(pending, entry)
	}
	return pending
}

// warmup hits the site root once so the cookie jar holds a session
// before detail pages are requested. Failure is not fatal.
func warmup(ctx context.Context, client *http.Client, pageURL string, out io.Writer) {
	root, err := siteRoot(pageURL)
	if err != nil {
		fmt.Fprintf(out, "could not establish session, proceeding: %v\n", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root, nil)
	if err != nil {
		fmt.Fprintf(out, "could not establish session, proceeding: %v\n", err)
		return
	}
	req.Header.Set("Accept", "text/html")
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(out, "could not establish session, proceeding: %v\n", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
	resp.Body.Close()
	fmt.Fprintln(out, "session established")
}

// fetchEntryImages fetches one detail page and extracts image URLs. Any
// failure yields nil; the caller records it as an empty attempt.
func fetchEntryImages(ctx context.Context, client *http.Client, pageURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil
	}
	referer, err := siteRoot(pageURL)
	if err != nil {
		referer = ""
	}
	decoratePageRequest(req, referer)

	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil
	}
	return extractImageURLs(body)
}

func failurePause(base time.Duration) time.Duration {
	if half := int64(base) / 2; half > 0 {
		return base + time.Duration(rand.Int63n(half))
	}
	return base
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
