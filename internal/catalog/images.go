package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Images maps a catalog entry id to the image URLs scraped for it. An empty
// list records a scrape attempt that found nothing; such entries are retried
// on the next scraper run.
type Images map[string][]string

// Resolved reports whether id has at least one scraped image URL. Absent ids
// and recorded empty attempts both count as unresolved.
func (m Images) Resolved(id string) bool {
	return len(m[id]) > 0
}

// LoadImages reads and decodes an image mapping file. A missing file is not
// an error: it yields an empty mapping so a first scraper run starts fresh.
func LoadImages(path string) (Images, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Images{}, nil
		}
		return nil, fmt.Errorf("read image mapping: %w", err)
	}
	var images Images
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("decode image mapping: %w", err)
	}
	if images == nil {
		images = Images{}
	}
	return images, nil
}

// SaveImages writes the mapping atomically: the JSON is staged in a temp file
// beside the destination, synced, and moved into place with a rename, so a
// concurrent reader never observes a partial file.
func SaveImages(path string, images Images) error {
	if images == nil {
		images = Images{}
	}
	data, err := json.MarshalIndent(images, "", "  ")
	if err != nil {
		return fmt.Errorf("encode image mapping: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

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
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
