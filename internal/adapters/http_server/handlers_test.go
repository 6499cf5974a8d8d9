package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	server "fitidea/internal/adapters/http_server"
	"fitidea/internal/app"
	"fitidea/internal/domain"
)

type fakeReader struct {
	e     domain.Entity
	calls int
}

func (f *fakeReader) GetListing(_ context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	f.calls++
	if kind != f.e.Kind || id != f.e.ID {
		return domain.Entity{}, domain.ErrNotFound
	}
	return f.e, nil
}

type fakeIngester struct {
	out    app.Outcome
	err    error
	gotURL string
	gotSrc string
	report app.SyncReport
}

func (f *fakeIngester) Ingest(_ context.Context, itemURL, source string) (app.Outcome, error) {
	f.gotURL, f.gotSrc = itemURL, source
	return f.out, f.err
}

func (f *fakeIngester) SyncAll(context.Context) app.SyncReport { return f.report }

type fakeLogos struct{}

func (fakeLogos) ResolveLogo(_ context.Context, brand string) string {
	if brand == "basicfit" {
		return "https://www.basic-fit.com/logo.svg"
	}
	return app.PlaceholderLogo
}

type fakeOffers struct {
	offers []domain.Offer
	err    error
}

func (f fakeOffers) Search(_ context.Context, q string) ([]domain.Offer, error) {
	if strings.TrimSpace(q) == "" {
		return nil, app.ErrEmptyQuery
	}
	return f.offers, f.err
}

func pstr(s string) *string { return &s }

func newTestServer(t *testing.T, h *server.Handlers) *httptest.Server {
	t.Helper()
	s := server.New(5 * time.Second)
	s.MountHandlers(h)
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func decodeProblem(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q", ct)
	}
	var p map[string]any
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestGetGym_ETagAndNotModified(t *testing.T) {
	r := &fakeReader{e: domain.Entity{ID: 7, Listing: domain.Listing{Kind: domain.KindGym, Source: "basicfit", Name: pstr("Basic-Fit Lyon")}}}
	ts := newTestServer(t, &server.Handlers{Q: r})

	res, err := http.Get(ts.URL + "/v1/gyms/7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("missing weak ETag: %q", etag)
	}
	var body domain.Entity
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != 7 || body.Name == nil || *body.Name != "Basic-Fit Lyon" {
		t.Fatalf("unexpected body: %+v", body)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/gyms/7", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET conditional: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified || res2.Header.Get("ETag") != etag {
		t.Fatalf("expected 304 with ETag, got %d %q", res2.StatusCode, res2.Header.Get("ETag"))
	}
}

func TestGetListing_NotFoundAndBadID(t *testing.T) {
	r := &fakeReader{e: domain.Entity{ID: 7, Listing: domain.Listing{Kind: domain.KindGym}}}
	ts := newTestServer(t, &server.Handlers{Q: r})

	// a gym id is not a product id
	res, err := http.Get(ts.URL + "/v1/products/7")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
	if p := decodeProblem(t, res); p["title"] != "Not Found" {
		t.Fatalf("problem = %v", p)
	}

	res, err = http.Get(ts.URL + "/v1/gyms/abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest || r.calls != 1 {
		t.Fatalf("expected 400 without a lookup, got %d (calls=%d)", res.StatusCode, r.calls)
	}
}

func TestIngest_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", &domain.UnsupportedSourceError{Source: "nope"}, http.StatusBadRequest},
		{"upstream", &domain.FetchError{URL: "https://x", Status: 503}, http.StatusBadGateway},
		{"parse", &domain.ParseError{Source: "basicfit", URL: "https://x", Err: domain.ErrNoIdentity}, http.StatusUnprocessableEntity},
		{"config", &domain.ConfigurationError{Setting: "SERPAPI_KEY"}, http.StatusServiceUnavailable},
		{"deadline", &domain.FetchError{URL: "https://x", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, &server.Handlers{Ingest: &fakeIngester{err: tc.err}})
			res, err := http.Post(ts.URL+"/v1/ingest", "application/json",
				strings.NewReader(`{"url":"https://www.basic-fit.com/fr-fr/clubs/lyon","source":"basicfit"}`))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer res.Body.Close()
			if res.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.want)
			}
			if p := decodeProblem(t, res); int(p["status"].(float64)) != tc.want {
				t.Fatalf("problem status = %v", p["status"])
			}
		})
	}
}

func TestIngest_CreatedAndValidation(t *testing.T) {
	ing := &fakeIngester{out: app.Outcome{
		Status: app.StatusCreated,
		Entity: &domain.Entity{ID: 1, Listing: domain.Listing{Kind: domain.KindGym, Name: pstr("Neoness Bastille")}},
	}}
	ts := newTestServer(t, &server.Handlers{Ingest: ing})

	res, err := http.Post(ts.URL+"/v1/ingest", "application/json",
		strings.NewReader(`{"url":" https://www.neoness.fr/salle/bastille ","source":"neoness"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", res.StatusCode)
	}
	var out app.Outcome
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != app.StatusCreated || out.Entity == nil || out.Entity.ID != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ing.gotURL != "https://www.neoness.fr/salle/bastille" || ing.gotSrc != "neoness" {
		t.Fatalf("ingest called with %q %q", ing.gotURL, ing.gotSrc)
	}

	for _, body := range []string{`not json`, `{"url":"/relative","source":"neoness"}`, `{"url":"https://x.fr/a","source":""}`} {
		res, err := http.Post(ts.URL+"/v1/ingest", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status %d", body, res.StatusCode)
		}
	}
}

func TestSync_ReturnsReport(t *testing.T) {
	ing := &fakeIngester{report: app.SyncReport{RunID: "run-1", Total: 4, Created: 3, Failed: 1}}
	ts := newTestServer(t, &server.Handlers{Ingest: ing})

	res, err := http.Post(ts.URL+"/v1/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	var rep app.SyncReport
	if err := json.NewDecoder(res.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.StatusCode != http.StatusOK || rep.RunID != "run-1" || rep.Total != 4 || rep.Failed != 1 {
		t.Fatalf("unexpected report %d %+v", res.StatusCode, rep)
	}
}

func TestLogoAndOffers(t *testing.T) {
	offers := fakeOffers{offers: []domain.Offer{{Title: "Whey 1kg", Source: "MyProtein"}}}
	ts := newTestServer(t, &server.Handlers{Logos: fakeLogos{}, Offers: offers})

	res, err := http.Get(ts.URL + "/v1/logos/basicfit")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var logo struct {
		Brand   string `json:"brand"`
		LogoURL string `json:"logo_url"`
	}
	_ = json.NewDecoder(res.Body).Decode(&logo)
	res.Body.Close()
	if logo.Brand != "basicfit" || logo.LogoURL != "https://www.basic-fit.com/logo.svg" {
		t.Fatalf("unexpected logo: %+v", logo)
	}

	res, err = http.Get(ts.URL + "/v1/offers?q=whey")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var got struct {
		Query  string         `json:"query"`
		Offers []domain.Offer `json:"offers"`
	}
	_ = json.NewDecoder(res.Body).Decode(&got)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || got.Query != "whey" || len(got.Offers) != 1 {
		t.Fatalf("unexpected offers %d %+v", res.StatusCode, got)
	}

	res, err = http.Get(ts.URL + "/v1/offers")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty query status %d", res.StatusCode)
	}

	ts2 := newTestServer(t, &server.Handlers{Offers: fakeOffers{err: &domain.ConfigurationError{Setting: "SERPAPI_KEY"}}})
	res, err = http.Get(ts2.URL + "/v1/offers?q=whey")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status %d", res.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &server.Handlers{})
	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestTimeout_AnswersGatewayTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ts := httptest.NewServer(server.Timeout(20 * time.Millisecond)(slow))
	defer ts.Close()

	res, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", res.StatusCode)
	}
	if p := decodeProblem(t, res); p["title"] != "Timeout" {
		t.Fatalf("problem = %v", p)
	}
}
