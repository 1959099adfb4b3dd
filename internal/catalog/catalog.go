// Package catalog defines the perfume catalog data model shared by the
// offline tools. The delivery server never decodes these files; it serves
// their bytes as-is.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one perfume in the published catalog. Entries are immutable once
// published; clients load the whole catalog as a single JSON array.
type Entry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Notes         []string `json:"notes,omitempty"`
	Concentration string   `json:"concentration,omitempty"`
	Year          int      `json:"year,omitempty"`
	URL           string   `json:"url,omitempty"`
	ImageURLs     []string `json:"image_urls,omitempty"`
}

// LoadEntries reads and decodes a catalog file.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}
