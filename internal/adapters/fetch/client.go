// Package fetch is the shared outbound HTML fetcher used by every source adapter.
// It never retries; retry policy belongs to the ingestion orchestrator.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"fitidea/internal/adapters/observability"
	"fitidea/internal/domain"
)

const (
	UserAgent       = "FitideaBot/1.0"
	maxBodyBytes    = 5 << 20
	defaultTimeout  = 20 * time.Second
	defaultConnect  = 10 * time.Second
	observedService = "fetch"
)

type Options struct {
	Timeout        time.Duration // total, including body read
	ConnectTimeout time.Duration
	RPS            float64 // 0 disables the politeness limiter
}

type Client struct {
	hc *http.Client
	rl *rate.Limiter
}

func New(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ConnectTimeout <= 0 || o.ConnectTimeout > o.Timeout {
		o.ConnectTimeout = defaultConnect
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   o.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   o.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := &Client{hc: &http.Client{Timeout: o.Timeout, Transport: transport}}
	if o.RPS > 0 {
		burst := int(o.RPS)
		if burst < 1 {
			burst = 1
		}
		c.rl = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	return c
}

// Fetch GETs url and returns the body. Any transport error or non-2xx status is a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return nil, &domain.FetchError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")

	start := time.Now()
	host := hostOf(rawURL)
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(observedService, host, 0, time.Since(start))
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal(observedService, host, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		// a body cut short is a transport failure, not an HTTP status
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
