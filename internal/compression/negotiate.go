package compression

import (
	"strconv"
	"strings"
)

// Accepts reports whether the Accept-Encoding header value allows the named
// content coding. An explicit mention governs: a q of zero refuses the
// coding even when a wildcard would allow it. A wildcard covers codings the
// header does not mention. An empty header accepts nothing, which keeps the
// original representation.
func Accepts(header, name string) bool {
	wildcard := false
	for _, part := range strings.Split(header, ",") {
		token, q := parseCoding(part)
		switch {
		case token == "":
		case strings.EqualFold(token, name):
			return q > 0
		case token == "*":
			wildcard = q > 0
		}
	}
	return wildcard
}

// parseCoding splits one Accept-Encoding element into its coding token and
// quality value. A missing or malformed q parameter counts as 1.
func parseCoding(part string) (token string, q float64) {
	fields := strings.Split(part, ";")
	token = strings.TrimSpace(fields[0])
	q = 1
	for _, field := range fields[1:] {
		value, ok := strings.CutPrefix(strings.TrimSpace(field), "q=")
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		q = parsed
	}
	return token, q
}
