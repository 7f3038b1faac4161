// Package collyfetcher implements corpus.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
	// RetryBackoff is the first delay between attempts; it doubles each time.
	RetryBackoff time.Duration
}

// Waiter paces requests. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements corpus.Fetcher using a Colly collector.
type Fetcher struct {
	cfg           Config
	limiter       Waiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// attempt is the outcome of a single visit.
type attempt struct {
	body   string
	status int
	err    error
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.DetectCharset = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch returns the decoded body of url. Failures are *corpus.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	backoff := f.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var last attempt
	for try := 0; try <= f.cfg.MaxRetries; try++ {
		if try > 0 {
			f.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", try+1),
				zap.Int("status", last.status),
				zap.Error(last.err),
			)
			if err := sleepWithContext(ctx, backoff); err != nil {
				last = attempt{status: last.status, err: err}
				break
			}
			backoff *= 2
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				last = attempt{err: err}
				break
			}
		}

		last = f.visit(ctx, url)
		if last.err == nil {
			metrics.ObserveFetch(url, "ok", len(last.body))
			return last.body, nil
		}
		if !retryable(last.status, last.err) {
			break
		}
	}

	metrics.ObserveFetch(url, "error", 0)
	return "", &corpus.FetchError{URL: url, StatusCode: last.status, Err: last.err}
}

func (f *Fetcher) visit(ctx context.Context, url string) attempt {
	var result attempt
	collector := f.buildCollector(&result)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return attempt{err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if result.err != nil {
			return result
		}
		if err != nil {
			result.err = fmt.Errorf("colly visit failed: %w", err)
		}
		return result
	}
}

func (f *Fetcher) buildCollector(result *attempt) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	configureCollectorHooks(collector, result)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, result *attempt) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = string(r.Body)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
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
