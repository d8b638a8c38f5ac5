package scraper

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

type FetcherConfig struct {
	UserAgent string
	// RatePerHost is the number of requests per second allowed to one host.
	// Zero or less disables limiting.
	RatePerHost float64
	Timeout     time.Duration
}

// Fetcher downloads product pages with a browser-like request profile and a
// per-host rate limit.
type Fetcher struct {
	userAgent string
	limit     rate.Limit
	timeout   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerHost > 0 {
		limit = rate.Limit(cfg.RatePerHost)
	}
	return &Fetcher{
		userAgent: cfg.UserAgent,
		limit:     limit,
		timeout:   cfg.Timeout,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Fetch downloads pageURL and parses it into a document. Failures are returned
// as *domain.ScrapeError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, &domain.ScrapeError{Kind: domain.KindUnsupportedSite, URL: pageURL, Err: err}
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, &domain.ScrapeError{Kind: domain.KindTimeout, URL: pageURL, Err: err}
	}

	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.DisableCookies()
	c.SetRequestTimeout(f.timeout)
	c.WithTransport(contextTransport{ctx: ctx, base: http.DefaultTransport})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-IN,en;q=0.9")
	})

	var (
		doc      *goquery.Document
		parseErr error
		status   int
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, classifyFetchError(pageURL, status, fetchErr)
	}
	if parseErr != nil || doc == nil {
		return nil, &domain.ScrapeError{Kind: domain.KindParseFailure, URL: pageURL, Err: parseErr}
	}
	if isChallengePage(doc) {
		return nil, &domain.ScrapeError{Kind: domain.KindBlocked, URL: pageURL, Err: errors.New("bot challenge page")}
	}
	return doc, nil
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, 1)
		f.limiters[host] = l
	}
	return l
}

type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func classifyFetchError(pageURL string, status int, err error) error {
	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &domain.ScrapeError{Kind: domain.KindBlocked, URL: pageURL, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.ScrapeError{Kind: domain.KindTimeout, URL: pageURL, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &domain.ScrapeError{Kind: domain.KindTimeout, URL: pageURL, Err: err}
	}
	return &domain.ScrapeError{Kind: domain.KindNetworkFailure, URL: pageURL, Err: err}
}

var challengeMarkers = []string{"robot check", "captcha", "access denied", "are you a human"}

func isChallengePage(doc *goquery.Document) bool {
	if doc.Find(`form[action*="validateCaptcha"], #captchacharacters`).Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").First().Text())
	for _, marker := range challengeMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// firstText returns the trimmed text of the first selector that matches an
// element with non-empty text.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = strings.TrimSpace(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}
