// Package collyfetcher implements novel.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/novelgrab/novelgrab/internal/novel"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements novel.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	// Serialized-fiction sites are frequently GBK/GB2312 encoded.
	c.DetectCharset = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and classifies failures for the retry
// machinery: timeouts and 5xx responses are transient, 401/403/429 are
// access failures, 404 is a parse-class failure (the chapter is simply gone).
func (f *Fetcher) Fetch(ctx context.Context, locator string) (novel.Page, error) {
	var (
		result   novel.Page
		respCode int
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = novel.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			respCode = r.StatusCode
		}
		fetchErr = err
	})

	visitErr, ctxErr := f.runCollector(ctx, collector, locator)
	if ctxErr != nil {
		return novel.Page{}, ctxErr
	}
	if fetchErr != nil {
		return novel.Page{}, classify(respCode, fmt.Errorf("fetch %s: %w", locator, fetchErr))
	}
	if visitErr != nil {
		return novel.Page{}, novel.MarkTransient(fmt.Errorf("fetch %s: %w", locator, visitErr))
	}
	if result.StatusCode != http.StatusOK {
		return novel.Page{}, classify(result.StatusCode,
			fmt.Errorf("fetch %s: unexpected status %d", locator, result.StatusCode))
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, locator string) (visitErr, ctxErr error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(locator)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err, nil
	}
}

func classify(status int, err error) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return novel.MarkAccessFailure(err)
	case http.StatusNotFound, http.StatusGone:
		return novel.MarkParseFailure(err)
	default:
		// Covers 5xx, connection resets, and timeouts.
		return novel.MarkTransient(err)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
