package imagescrape

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// catalogHostToken must appear in an og:image URL for it to be trusted.
// Shared og:image tags on error pages point at CDN placeholders that
// fail this check.
const catalogHostToken = "parfumo"

// mediaURLPatterns are the known bottle-image hosts, tried in order when
// a page has no usable og:image tag.
var mediaURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://media\.parfumo\.com/perfume_social/[^"'\s]+\.(?:jpg|png|webp)[^"'\s]*`),
	regexp.MustCompile(`https://media\.parfumo\.com/perfumes/[^"'\s]+\.(?:jpg|png|webp)[^"'\s]*`),
	regexp.MustCompile(`https://images\.parfumo\.de/perfume_bottle/[^"'\s]+\.(?:jpg|png|webp)`),
}

// extractImageURLs pulls the bottle image out of a detail page: og:image
// when it passes the placeholder and host checks, otherwise the first
// known media-host URL found in the markup.
func extractImageURLs(body []byte) []string {
	if u := ogImage(body); u != "" && !strings.Contains(u, "404") && strings.Contains(u, catalogHostToken) {
		return []string{u}
	}
	for _, re := range mediaURLPatterns {
		if m := re.Find(body); m != nil {
			return []string{string(m)}
		}
	}
	return nil
}

// ogImage returns the content of the first og:image meta tag, or "".
func ogImage(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var property, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if property == "og:image" && content != "" {
				found = content
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}
