// internal/adapters/serpapi/client.go
package serpapi

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fitidea/internal/adapters/observability"
	"fitidea/internal/domain"
	"fitidea/internal/normalize"
)

const DefaultBase = "https://serpapi.com"

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

// New builds a client. An empty key is allowed: every call then fails with
// *domain.ConfigurationError instead of reaching the network.
func New(base, key string, rps int) *Client {
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 15 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *Client) Configured() bool { return c.key != "" }

// ---- Public API ----

// AmazonProduct returns the raw amazon_product payload for a product page URL.
func (c *Client) AmazonProduct(ctx context.Context, productURL string) (map[string]any, error) {
	var out map[string]any
	return out, c.search(ctx, url.Values{"engine": {"amazon_product"}, "product_url": {productURL}}, &out)
}

// Shopping runs a google_shopping query and simplifies its results into offers.
func (c *Client) Shopping(ctx context.Context, query string) ([]domain.Offer, error) {
	var payload struct {
		ShoppingResults []struct {
			Title     string `json:"title"`
			Price     any    `json:"price"`
			Extracted any    `json:"extracted_price"`
			Source    string `json:"source"`
			Link      string `json:"link"`
			Thumbnail string `json:"thumbnail"`
			Image     string `json:"image"`
		} `json:"shopping_results"`
	}
	params := url.Values{"engine": {"google_shopping"}, "q": {query}, "num": {"10"}}
	if err := c.search(ctx, params, &payload); err != nil {
		return nil, err
	}

	offers := make([]domain.Offer, 0, len(payload.ShoppingResults))
	for _, r := range payload.ShoppingResults {
		o := domain.Offer{
			Title:     r.Title,
			PriceRaw:  anyString(r.Price),
			Source:    r.Source,
			Link:      r.Link,
			Thumbnail: r.Thumbnail,
		}
		if o.Thumbnail == "" {
			o.Thumbnail = r.Image
		}
		if p := normalize.ToFloat(anyString(r.Extracted)); p != nil {
			o.Price = p
		} else {
			o.Price = normalize.ToFloat(o.PriceRaw)
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// ---- Internals ----

var (
	ErrUnauthorized = errors.New("serpapi: unauthorized")
	ErrForbidden    = errors.New("serpapi: forbidden")
)

func (c *Client) search(ctx context.Context, params url.Values, out any) error {
	if c.key == "" {
		return &domain.ConfigurationError{Setting: "SERPAPI_KEY"}
	}
	params.Set("api_key", c.key)
	return c.get(ctx, c.base+"/search.json?"+params.Encode(), out)
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "FitideaBot/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("serpapi", "search", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &domain.FetchError{URL: redact(u), Err: err}
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("serpapi", "search", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("serpapi: decode response: %w", err)
			}
			return nil

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &domain.FetchError{URL: redact(u), Status: resp.StatusCode}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.FetchError{URL: redact(u), Status: resp.StatusCode}
		}
	}

	return lastErr
}

// redact keeps the api key out of errors and logs.
func redact(u string) string {
	p, err := url.Parse(u)
	if err != nil {
		return "serpapi"
	}
	q := p.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		p.RawQuery = q.Encode()
	}
	return p.String()
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential delay (200ms, 400ms, 800ms...) with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
