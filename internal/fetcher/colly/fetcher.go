// Package collyfetcher downloads share pages and media with gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/metrics"
	"github.com/JakeFAU/notesaver/internal/policy/ratelimit"
)

const defaultTimeout = 30 * time.Second

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps response bodies in bytes; 0 means unlimited.
	MaxBodySize int
	// Transport overrides the default HTTP transport.
	Transport http.RoundTripper
}

// Fetcher performs synchronous GETs, following redirects.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	code int
	body []byte
	err  error
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt())
	c.AllowURLRevisit = true
	// colly truncates silently at MaxBodySize; one extra byte tells an
	// oversized body apart from one that fits exactly.
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize + 1
	} else {
		c.MaxBodySize = 0
	}
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Transport != nil {
		c.WithTransport(cfg.Transport)
	} else {
		c.WithTransport(newHTTPTransport())
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch returns the body of rawURL. Non-2xx responses and bodies over
// MaxBodySize are errors. If ctx is canceled Fetch returns at once, but the
// underlying request keeps running in the background until it completes or
// hits Config.Timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := f.runCollector(ctx, f.baseCollector.Clone(), rawURL)
	metrics.ObserveFetch(rawURL, result.code, len(result.body), time.Since(start))
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			f.logger.Info("share page not found", zap.String("url", rawURL))
		} else {
			f.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Int("status", result.code), zap.Error(err))
		}
		return nil, err
	}
	return result.body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.code = r.StatusCode
		if f.cfg.MaxBodySize > 0 && len(r.Body) > f.cfg.MaxBodySize {
			result.err = fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.cfg.MaxBodySize)
			return
		}
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.code = r.StatusCode
		}
		result.err = err
	})
}

// runCollector visits on a separate goroutine so a canceled context returns
// promptly; the abandoned request ends at the collector's timeout. The
// goroutine owns its result until it is sent.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) (fetchResult, error) {
	done := make(chan fetchResult, 1)
	go func() {
		var result fetchResult
		f.configureCollectorHooks(collector, &result)
		if err := collector.Visit(rawURL); err != nil && result.err == nil {
			result.err = err
		}
		done <- result
	}()

	select {
	case <-ctx.Done():
		return fetchResult{}, fmt.Errorf("fetch %s canceled: %w", rawURL, ctx.Err())
	case result := <-done:
		if result.err != nil {
			return result, fmt.Errorf("fetch %s: %w", rawURL, result.err)
		}
		if result.code < http.StatusOK || result.code >= http.StatusMultipleChoices {
			return result, fmt.Errorf("fetch %s: %w", rawURL, &StatusError{Code: result.code})
		}
		return result, nil
	}
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
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
