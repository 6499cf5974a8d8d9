// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"fitidea/internal/app"
	"fitidea/internal/domain"
)

// Narrow views of the app services so handlers can be tested with fakes.
type (
	ListingReader interface {
		GetListing(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error)
	}
	Ingester interface {
		Ingest(ctx context.Context, itemURL, source string) (app.Outcome, error)
		SyncAll(ctx context.Context) app.SyncReport
	}
	LogoResolver interface {
		ResolveLogo(ctx context.Context, brand string) string
	}
	OfferSearcher interface {
		Search(ctx context.Context, query string) ([]domain.Offer, error)
	}
)

type Handlers struct {
	Q      ListingReader
	Ingest Ingester
	Logos  LogoResolver
	Offers OfferSearcher
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type ingestRequest struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type logoResponse struct {
	Brand   string `json:"brand"`
	LogoURL string `json:"logo_url"`
}

type offersResponse struct {
	Query  string         `json:"query"`
	Offers []domain.Offer `json:"offers"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))
		r.Post("/v1/ingest", h.ingest)
		r.Get("/v1/logos/{brand}", h.getLogo)
		r.Get("/v1/offers", h.searchOffers)
		r.Get("/v1/gyms/{id}", h.getListing(domain.KindGym))
		r.Get("/v1/products/{id}", h.getListing(domain.KindProduct))
	})
	// A full sync outlives the request timeout.
	s.mux.Post("/v1/sync", h.sync)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var (
		us *domain.UnsupportedSourceError
		ce *domain.ConfigurationError
		fe *domain.FetchError
		pe *domain.ParseError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", err.Error())
	case errors.As(err, &us):
		writeProblem(w, http.StatusBadRequest, "Unsupported source", err.Error())
	case errors.Is(err, app.ErrEmptyQuery):
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error())
	case errors.As(err, &ce):
		writeProblem(w, http.StatusServiceUnavailable, "Not configured", err.Error())
	case errors.As(err, &fe):
		writeProblem(w, http.StatusBadGateway, "Upstream failure", err.Error())
	case errors.As(err, &pe):
		writeProblem(w, http.StatusUnprocessableEntity, "Unparseable item", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled request error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) getListing(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
			return
		}
		e, err := h.Q.GetListing(r.Context(), kind, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Not Found", string(kind)+" not found")
				return
			}
			writeError(w, err)
			return
		}

		etag, body := calcETagAndBody(e)
		// If client already has this version, short-circuit.
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("failed to write listing body")
		}
	}
}

func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected JSON {url, source}")
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "url must be an absolute http(s) URL")
		return
	}
	if req.Source == "" {
		writeProblem(w, http.StatusBadRequest, "Unsupported source", "source is required")
		return
	}

	out, err := h.Ingest.Ingest(r.Context(), u.String(), req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if out.Status == app.StatusCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (h *Handlers) sync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ingest.SyncAll(r.Context()))
}

func (h *Handlers) getLogo(w http.ResponseWriter, r *http.Request) {
	brand := strings.TrimSpace(chi.URLParam(r, "brand"))
	if brand == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid brand", "brand is required")
		return
	}
	writeJSON(w, http.StatusOK, logoResponse{Brand: brand, LogoURL: h.Logos.ResolveLogo(r.Context(), brand)})
}

func (h *Handlers) searchOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	offers, err := h.Offers.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	writeJSON(w, http.StatusOK, offersResponse{Query: strings.TrimSpace(q), Offers: offers})
}
