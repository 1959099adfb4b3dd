package imagescrape

import (
	"testing"
)

func TestExtractImageURLsPrefersOgImage(t *testing.T) {
	page := `<!doctype html><html><head>
<meta property="og:image" content="https://media.parfumo.com/perfumes/terre_123.jpg">
</head><body>https://media.parfumo.com/perfumes/other.jpg</body></html>`

	got := extractImageURLs([]byte(page))
	if len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/terre_123.jpg" {
		t.Fatalf("extractImageURLs = %v", got)
	}
}

func TestExtractImageURLsRejectsPlaceholder(t *testing.T) {
	page := `<html><head><meta property="og:image" content="https://media.parfumo.com/404_placeholder.jpg"></head>
<body>https://media.parfumo.com/perfumes/real_bottle.png</body></html>`

	got := extractImageURLs([]byte(page))
	if len(got) != 1 || got[0] != "https://media.parfumo.com/perfumes/real_bottle.png" {
		t.Fatalf("extractImageURLs = %v", got)
	}
}

func TestExtractImageURLsRejectsForeignHost(t *testing.T) {
	page := `<html><head><meta property="og:image" content="https://cdn.example.com/bottle.jpg"></head>
<body>no known media urls here</body></html>`

	if got := extractImageURLs([]byte(page)); got != nil {
		t.Fatalf("extractImageURLs = %v, want nil", got)
	}
}

func TestExtractImageURLsFallbackPatterns(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			"social image with query",
			`<html><body>src="https://media.parfumo.com/perfume_social/abc.jpg?v=2"</body></html>`,
			"https://media.parfumo.com/perfume_social/abc.jpg?v=2",
		},
		{
			"perfumes path",
			`<html><body>src="https://media.parfumo.com/perfumes/bottle.webp"</body></html>`,
			"https://media.parfumo.com/perfumes/bottle.webp",
		},
		{
			"legacy bottle host",
			`<html><body>src="https://images.parfumo.de/perfume_bottle/xyz.png"</body></html>`,
			"https://images.parfumo.de/perfume_bottle/xyz.png",
		},
	}
	for _, tc := range tests {
		got := extractImageURLs([]byte(tc.page))
		if len(got) != 1 || got[0] != tc.want {
			t.Fatalf("%s: extractImageURLs = %v, want [%s]", tc.name, got, tc.want)
		}
	}
}

func TestExtractImageURLsEmptyPage(t *testing.T) {
	if got := extractImageURLs([]byte("<html><body></body></html>")); got != nil {
		t.Fatalf("extractImageURLs = %v, want nil", got)
	}
}

func TestExtractImageURLsGarbageInput(t *testing.T) {
	if got := extractImageURLs([]byte("<<<not>>>html&&&")); got != nil {
		t.Fatalf("extractImageURLs = %v, want nil", got)
	}
}

func TestOgImage(t *testing.T) {
	page := `<html><head>
<meta name="description" content="a perfume">
<meta property="og:title" content="Terre">
<meta property="og:image" content="https://media.parfumo.com/perfumes/a.jpg">
<meta property="og:image" content="https://media.parfumo.com/perfumes/b.jpg">
</head></html>`

	if got := ogImage([]byte(page)); got != "https://media.parfumo.com/perfumes/a.jpg" {
		t.Fatalf("ogImage = %q, want first og:image", got)
	}
	if got := ogImage([]byte("<html></html>")); got != "" {
		t.Fatalf("ogImage = %q, want empty", got)
	}
}
