// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// ScrapeRequest caps the time allowed for a single outbound request made
// by the image scraper.
const ScrapeRequest = 15 * time.Second

// WatchDebounce is how long the precompress watcher waits after the last
// filesystem event before rebuilding, so bursts of writes coalesce into a
// single pass.
const WatchDebounce = 500 * time.Millisecond
