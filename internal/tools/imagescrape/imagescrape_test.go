package imagescrape

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/scentshelf/internal/catalog"
)

// fastConfig keeps politeness and retry waits out of test runtime.
func fastConfig(catalogPath, outPath string) Config {
	return Config{
		Catalog:      catalogPath,
		Out:          outPath,
		Delay:        time.Millisecond,
		SaveEvery:    1,
		MaxRetries:   -1,
		FailurePause: time.Millisecond,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}
}

func writeCatalog(t *testing.T, path string, entries []catalog.Entry) {
	t.Helper()
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing catalog", []string{"-out", "images.json"}},
		{"missing out", []string{"-catalog", "catalog.json"}},
		{"negative delay", []string{"-catalog", "c.json", "-out", "i.json", "-delay", "-1s"}},
		{"zero save-every", []string{"-catalog", "c.json", "-out", "i.json", "-save-every", "0"}},
	}
	for _, tc := range tests {
		fs := flag.NewFlagSet("scrape-images", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := ParseConfig(fs, tc.args); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scrape-images", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-catalog", "c.json", "-out", "i.json"})
	if err != nil {
		t.Fatalf("ParseConfig returned error: %v", err)
	}
	if cfg.Delay != defaultDelay {
		t.Fatalf("Delay = %v, want %v", cfg.Delay, defaultDelay)
	}
	if cfg.SaveEvery != defaultSaveEvery {
		t.Fatalf("SaveEvery = %d, want %d", cfg.SaveEvery, defaultSaveEvery)
	}
	if cfg.Limit != 0 {
		t.Fatalf("Limit = %d, want 0", cfg.Limit)
	}
}

func TestPendingEntries(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "p-001", URL: "https://example.com/1"},
		{ID: "p-002", URL: "https://example.com/2"},
		{ID: "p-003", URL: "https://example.com/3"},
		{ID: "p-003", URL: "https://example.com/3"},
		{ID: "p-004"},
		{URL: "https://example.com/5"},
	}
	images := catalog.Images{
		"p-002": {"https://media.parfumo.com/perfumes/a.jpg"},
		"p-003": {},
	}

	pending := pendingEntries(entries, images)
	if len(pending) != 2 {
		t.Fatalf("pending = %d entries, want 2", len(pending))
	}
	ids := map[string]bool{}
	for _, entry := range pending {
		ids[entry.ID] = true
	}
	if !ids["p-001"] || !ids["p-003"] {
		t.Fatalf("pending ids = %v, want p-001 and the empty attempt p-003", ids)
	}
}

func TestSiteRoot(t *testing.T) {
	got, err := siteRoot("https://www.parfumo.com/Perfumes/Hermes/terre")
	if err != nil {
		t.Fatalf("siteRoot returned error: %v", err)
	}
	if got != "https://www.parfumo.com/" {
		t.Fatalf("siteRoot = %q", got)
	}
	if _, err := siteRoot("Perfumes/relative"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		if j := jitter(80*time.Millisecond, 8); j < 80*time.Millisecond || j >= 90*time.Millisecond {
			t.Fatalf("jitter = %v, want [80ms, 90ms)", j)
		}
		if j := requestJitter(2 * time.Second); j < 500*time.Millisecond || j >= 2500*time.Millisecond {
			t.Fatalf("requestJitter = %v, want [500ms, 2.5s)", j)
		}
		if p := failurePause(time.Minute); p < time.Minute || p >= 90*time.Second {
			t.Fatalf("failurePause = %v, want [60s, 90s)", p)
		}
	}
}

func TestRetryStrategy(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusNotFound, false},
		{http.StatusOK, false},
	}
	for _, tc := range tests {
		retry, _ := retryStrategy(ctx, &http.Response{StatusCode: tc.status}, nil)
		if retry != tc.want {
			t.Fatalf("retryStrategy(%d) = %v, want %v", tc.status, retry, tc.want)
		}
	}
}

func TestRunScrapesAndSaves(t *testing.T) {
	var mu sync.Mutex
	warmups := 0
	pageRequests := 0
	pagesWithCookie := 0
	agents := map[string]bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		if r.URL.Path == "/" {
			warmups++
		} else {
			pageRequests++
			if _, err := r.Cookie("session"); err == nil {
				pagesWithCookie++
			}
		}
		mu.Unlock()

		switch r.URL.Path {
		case "/":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			fmt.Fprint(w, "<html>home</html>")
		case "/p/001":
			fmt.Fprint(w, `<html><head><meta property="og:image" content="https://media.parfumo.com/perfumes/terre.jpg"></head></html>`)
		case "/p/002":
			fmt.Fprint(w, "<html><body>nothing here</body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	outPath := filepath.Join(dir, "images.json")
	writeCatalog(t, catalogPath, []catalog.Entry{
		{ID: "p-001", Name: "Terre", Brand: "Hermès", URL: srv.URL + "/p/001"},
		{ID: "p-002", Name: "Encre Noire", Brand: "Lalique", URL: srv.URL + "/p/002"},
		{ID: "p-003", Name: "Gone", Brand: "Nobody", URL: srv.URL + "/p/003"},
		{ID: "p-004", Name: "Already Done", Brand: "Done", URL: srv.URL + "/p/004"},
	})
	seeded := catalog.Images{"p-004": {"https://media.parfumo.com/perfumes/done.jpg"}}
	if err := catalog.SaveImages(outPath, seeded); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	var out bytes.Buffer
	if err := Run(context.Background(), fastConfig(catalogPath, outPath), &out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	images, err := catalog.LoadImages(outPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if got := images["p-001"]; len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/terre.jpg" {
		t.Fatalf("p-001 = %v", got)
	}
	for _, id := range []string{"p-002", "p-003"} {
		urls, ok := images[id]
		if !ok {
			t.Fatalf("%s has no recorded attempt", id)
		}
		if len(urls) != 0 {
			t.Fatalf("%s = %v, want empty attempt", id, urls)
		}
	}
	if got := images["p-004"]; len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/done.jpg" {
		t.Fatalf("p-004 = %v, want untouched mapping", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if warmups != 1 {
		t.Fatalf("warmups = %d, want 1", warmups)
	}
	if pageRequests != 3 {
		t.Fatalf("page requests = %d, want 3", pageRequests)
	}
	if pagesWithCookie != pageRequests {
		t.Fatalf("pages with session cookie = %d, want %d", pagesWithCookie, pageRequests)
	}
	known := map[string]bool{}
	for _, ua := range userAgents {
		known[ua] = true
	}
	for agent := range agents {
		if !known[agent] {
			t.Fatalf("unexpected User-Agent %q", agent)
		}
	}

	if !strings.Contains(out.String(), "session established") {
		t.Fatalf("output missing warmup line: %q", out.String())
	}
	if !strings.Contains(out.String(), "scraped 3 entries, 1 with images") {
		t.Fatalf("output missing summary: %q", out.String())
	}
	if !strings.Contains(out.String(), "checkpoint:") {
		t.Fatalf("output missing checkpoint line: %q", out.String())
	}
}

func TestRunRetriesForbidden(t *testing.T) {
	var mu sync.Mutex
	pageHits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p/001" {
			fmt.Fprint(w, "<html>home</html>")
			return
		}
		mu.Lock()
		pageHits++
		hits := pageHits
		mu.Unlock()
		if hits < 3 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><head><meta property="og:image" content="https://media.parfumo.com/perfumes/retry.jpg"></head></html>`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	outPath := filepath.Join(dir, "images.json")
	writeCatalog(t, catalogPath, []catalog.Entry{
		{ID: "p-001", Name: "Retry", Brand: "Brand", URL: srv.URL + "/p/001"},
	})

	cfg := fastConfig(catalogPath, outPath)
	cfg.MaxRetries = 2
	if err := Run(context.Background(), cfg, io.Discard); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	images, err := catalog.LoadImages(outPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if got := images["p-001"]; len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/retry.jpg" {
		t.Fatalf("p-001 = %v, want image after retries", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if pageHits != 3 {
		t.Fatalf("page hits = %d, want 3 (two 403s then success)", pageHits)
	}
}

func TestRunRetriesEmptyAttemptsNextRun(t *testing.T) {
	var mu sync.Mutex
	serveImage := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p/001" {
			fmt.Fprint(w, "<html>home</html>")
			return
		}
		mu.Lock()
		ready := serveImage
		mu.Unlock()
		if !ready {
			fmt.Fprint(w, "<html><body>not yet</body></html>")
			return
		}
		fmt.Fprint(w, `<html><head><meta property="og:image" content="https://media.parfumo.com/perfumes/late.jpg"></head></html>`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	outPath := filepath.Join(dir, "images.json")
	writeCatalog(t, catalogPath, []catalog.Entry{
		{ID: "p-001", Name: "Late", Brand: "Brand", URL: srv.URL + "/p/001"},
	})

	cfg := fastConfig(catalogPath, outPath)
	if err := Run(context.Background(), cfg, io.Discard); err != nil {
		t.Fatalf("first run: %v", err)
	}
	images, err := catalog.LoadImages(outPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if urls, ok := images["p-001"]; !ok || len(urls) != 0 {
		t.Fatalf("p-001 = %v, want recorded empty attempt", urls)
	}

	mu.Lock()
	serveImage = true
	mu.Unlock()

	if err := Run(context.Background(), cfg, io.Discard); err != nil {
		t.Fatalf("second run: %v", err)
	}
	images, err = catalog.LoadImages(outPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if got := images["p-001"]; len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/late.jpg" {
		t.Fatalf("p-001 = %v, want image on second run", got)
	}
}

func TestRunNothingPending(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	outPath := filepath.Join(dir, "images.json")
	writeCatalog(t, catalogPath, []catalog.Entry{
		{ID: "p-001", Name: "Done", Brand: "Done", URL: "https://www.parfumo.com/p/1"},
	})
	if err := catalog.SaveImages(outPath, catalog.Images{"p-001": {"https://media.parfumo.com/perfumes/a.jpg"}}); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	var out bytes.Buffer
	if err := Run(context.Background(), fastConfig(catalogPath, outPath), &out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "0 of 1 entries need images") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRunLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing</body></html>")
	}))
	defer srv.Close()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	outPath := filepath.Join(dir, "images.json")
	writeCatalog(t, catalogPath, []catalog.Entry{
		{ID: "p-001", URL: srv.URL + "/p/001"},
		{ID: "p-002", URL: srv.URL + "/p/002"},
		{ID: "p-003", URL: srv.URL + "/p/003"},
	})

	cfg := fastConfig(catalogPath, outPath)
	cfg.Limit = 1
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	images, err := catalog.LoadImages(outPath)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("mapping has %d entries, want 1", len(images))
	}
}

func TestRunMissingCatalog(t *testing.T) {
	dir := t.TempDir()
	cfg := fastConfig(filepath.Join(dir, "absent.json"), filepath.Join(dir, "images.json"))
	if err := Run(context.Background(), cfg, io.Discard); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
