// Package sources turns raw pages from the supported gym chains and retailers into
// canonical listings. Every adapter is a pure parser; network access stays with the
// caller except for sources implementing ItemFetcher.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fitidea/internal/domain"
)

type Info struct {
	ID         string
	Kind       domain.Kind
	Brand      string
	ListingURL string
	Homepage   string
}

// Adapter knows how to read one source's listing page and item pages.
type Adapter interface {
	Info() Info
	// DiscoverListing returns the absolute item URLs linked from a listing page,
	// first-seen order, no duplicates.
	DiscoverListing(raw []byte, listingURL string) ([]string, error)
	// ParseItem maps an item page to a listing. Fields the page does not carry stay absent.
	ParseItem(raw []byte, itemURL string) (domain.Listing, error)
}

// ItemFetcher is implemented by adapters that retrieve their own item content
// instead of a plain GET of the item URL.
type ItemFetcher interface {
	FetchItem(ctx context.Context, itemURL string) ([]byte, error)
}

type parseFunc func(p *page) domain.Listing

// parsers binds source ids to their item parser. Everything else about a source is data.
var parsers = map[string]parseFunc{
	"basicfit":    parseBasicFit,
	"fitnesspark": parseFitnessPark,
	"neoness":     parseNeoness,
	"onair":       parseOnAir,
	"keepcool":    parseKeepCool,

	"decathlon": parseDecathlon,
	"myprotein": parseMyProtein,
	"prozis":    parseProzis,
	"gymshark":  parseGymshark,
	"amazon":    parseCommonProduct,
	"generic":   parseCommonProduct,
}

// Registry is the fixed id → adapter mapping. It is built once and read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry binds every configured source to its parser. fetcher and shopping are
// only used by sources that fetch their own items (amazon); either may be nil.
func NewRegistry(cfgs []SourceConfig, fetcher domain.Fetcher, shopping domain.ShoppingClient) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(cfgs))}
	for _, c := range cfgs {
		parse, ok := parsers[c.ID]
		if !ok {
			return nil, fmt.Errorf("source %s: no parser bound", c.ID)
		}
		if _, dup := r.adapters[c.ID]; dup {
			return nil, fmt.Errorf("source %s: declared twice", c.ID)
		}
		base := &htmlSource{
			info: Info{
				ID:         c.ID,
				Kind:       c.Kind,
				Brand:      c.Brand,
				ListingURL: c.ListingURL,
				Homepage:   c.Homepage,
			},
			selector: c.LinkSelector,
			parse:    parse,
		}
		var a Adapter = base
		if c.ID == "amazon" {
			a = &amazonSource{htmlSource: base, fetcher: fetcher, shopping: shopping}
		}
		r.adapters[c.ID] = a
	}
	return r, nil
}

// Get resolves a source id case-insensitively.
func (r *Registry) Get(id string) (Adapter, error) {
	if a, ok := r.adapters[strings.ToLower(strings.TrimSpace(id))]; ok {
		return a, nil
	}
	return nil, &domain.UnsupportedSourceError{Source: id}
}

// All returns every adapter sorted by id.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info().ID < out[j].Info().ID })
	return out
}

// Homepage returns the official site of a gym brand, or "" when none is known.
func (r *Registry) Homepage(brand string) string {
	b := strings.ToLower(strings.TrimSpace(brand))
	for _, a := range r.adapters {
		info := a.Info()
		if info.Kind != domain.KindGym || info.Homepage == "" {
			continue
		}
		if info.ID == b || strings.ToLower(info.Brand) == b {
			return info.Homepage
		}
	}
	return ""
}

// htmlSource is the shared adapter: link discovery by CSS selector, item parsing by a bound parseFunc.
type htmlSource struct {
	info     Info
	selector string
	parse    parseFunc
}

func (s *htmlSource) Info() Info { return s.info }

func (s *htmlSource) DiscoverListing(raw []byte, listingURL string) ([]string, error) {
	if s.selector == "" {
		return nil, nil
	}
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, &domain.ParseError{Source: s.info.ID, URL: listingURL, Err: err}
	}
	return discoverLinks(doc, listingURL, s.selector), nil
}

func (s *htmlSource) ParseItem(raw []byte, itemURL string) (domain.Listing, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return domain.Listing{}, &domain.ParseError{Source: s.info.ID, URL: itemURL, Err: err}
	}
	l := s.parse(&page{doc: doc, url: itemURL})
	l.Kind = s.info.Kind
	l.Source = s.info.ID
	if l.URL == "" {
		l.URL = itemURL
	}
	// A club's brand is the chain it was discovered under.
	if l.Kind == domain.KindGym && s.info.Brand != "" {
		b := s.info.Brand
		l.Brand = &b
	}
	if l.Kind == domain.KindProduct {
		l = finishProduct(l)
	}
	return l, nil
}
