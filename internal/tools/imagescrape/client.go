package imagescrape

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/louisbranch/scentshelf/internal/platform/timeouts"
)

// maxPageBytes caps how much of a detail page is read. Bottle pages are
// well under a megabyte; anything larger is not a page we want.
const maxPageBytes = 8 << 20

// userAgents is rotated across requests so a long run does not present
// one fingerprint for hours.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_3) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// rotatingTransport assigns a random User-Agent per request. The request
// is cloned first; RoundTrippers must not mutate their input.
type rotatingTransport struct {
	next http.RoundTripper
}

func (t *rotatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	return t.next.RoundTrip(clone)
}

// newClient builds the scraping HTTP client: cookie jar for session
// continuity, rotating User-Agent, and retries with jittered exponential
// backoff on 429/403/5xx.
func newClient(cfg Config) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Backoff = backoffStrategy
	rc.CheckRetry = retryStrategy
	rc.HTTPClient.Timeout = timeouts.ScrapeRequest
	rc.HTTPClient.Jar = jar
	rc.HTTPClient.Transport = &rotatingTransport{next: rc.HTTPClient.Transport}

	return rc.StandardClient(), nil
}

// retryStrategy extends the default policy (errors, 429, 5xx except 501)
// with 403, which the catalog site serves when it throttles a session.
func retryStrategy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusForbidden {
		return true, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// backoffStrategy adds jitter on top of the default exponential backoff
// so throttled sessions do not resume in lockstep.
func backoffStrategy(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	return jitter(retryablehttp.DefaultBackoff(min, max, attemptNum, resp), 8)
}

// jitter returns a duration in [d, d+d/divisor).
func jitter(d time.Duration, divisor int64) time.Duration {
	if int64(d)/divisor <= 0 {
		return d
	}
	return time.Duration(rand.Int63n(int64(d)/divisor) + int64(d))
}

// requestJitter spreads the politeness delay over [d/4, d+d/4) so request
// spacing never forms a fixed cadence.
func requestJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/4)
}

// siteRoot reduces an absolute page URL to scheme://host/ for the warmup
// request and the Referer header.
func siteRoot(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page url %q is not absolute", pageURL)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

// decoratePageRequest sets the browser-shaped headers every detail-page
// fetch carries. User-Agent is left to the transport.
func decoratePageRequest(req *http.Request, referer string) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,de;q=0.8")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}
