package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func compress(t *testing.T, enc Encoding, level int, input []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := enc.NewWriter(&buf, level)
	if err != nil {
		t.Fatalf("new %s writer: %v", enc.Name, err)
	}
	if _, err := w.Write(input); err != nil {
		t.Fatalf("write %s: %v", enc.Name, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", enc.Name, err)
	}
	return buf.Bytes()
}

func decompress(t *testing.T, enc Encoding, input []byte) []byte {
	t.Helper()
	r, err := enc.NewReader(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("new %s reader: %v", enc.Name, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read %s: %v", enc.Name, err)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	input := []byte(strings.Repeat(`{"id":"p-001","name":"Terre"}`, 200))
	for _, enc := range Registered() {
		enc := enc
		t.Run(enc.Name, func(t *testing.T) {
			t.Parallel()

			compressed := compress(t, enc, DefaultLevel, input)
			if len(compressed) >= len(input) {
				t.Fatalf("expected %s to shrink repetitive input: %d >= %d", enc.Name, len(compressed), len(input))
			}
			got := decompress(t, enc, compressed)
			if !bytes.Equal(got, input) {
				t.Fatalf("%s round trip altered content", enc.Name)
			}
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	t.Parallel()

	input := []byte(strings.Repeat("perfume catalog payload ", 500))
	for _, enc := range Registered() {
		enc := enc
		t.Run(enc.Name, func(t *testing.T) {
			t.Parallel()

			first := compress(t, enc, DefaultLevel, input)
			second := compress(t, enc, DefaultLevel, input)
			if !bytes.Equal(first, second) {
				t.Fatalf("%s output differs between identical runs", enc.Name)
			}
		})
	}
}

func TestGzipWriterRejectsInvalidLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := Gzip.NewWriter(&buf, 99); err == nil {
		t.Fatal("expected error for invalid gzip level")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	enc, ok := Lookup("GZip")
	if !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
	if enc.Suffix != ".gz" {
		t.Fatalf("suffix = %q, want .gz", enc.Suffix)
	}
	if _, ok := Lookup("br"); ok {
		t.Fatal("expected unknown encoding to miss")
	}
}

func TestIsTwinPath(t *testing.T) {
	t.Parallel()

	if !IsTwinPath("catalog/catalog.json.gz") {
		t.Fatal("expected .gz path to be a twin")
	}
	if !IsTwinPath("catalog/catalog.json.zst") {
		t.Fatal("expected .zst path to be a twin")
	}
	if IsTwinPath("catalog/catalog.json") {
		t.Fatal("expected source path not to be a twin")
	}
}
