package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"fitidea/internal/domain"
	"fitidea/internal/normalize"
)

// parseCommonProduct reads the OpenGraph / microdata fields every shop exposes, then
// fills the gaps from a schema.org Product block when one is present.
func parseCommonProduct(p *page) domain.Listing {
	l := domain.Listing{URL: p.url}
	l.Name = p.meta("og:title")
	if d := p.meta("og:description"); d != nil {
		l.Description = normalize.StripTags(*d)
	}
	if v := p.meta("product:price:amount"); v != nil {
		l.Price = normalize.ToFloat(*v)
	}
	l.Currency = p.meta("product:price:currency")

	rating := p.meta("product:rating")
	if rating == nil {
		rating = p.itemprop("ratingValue")
	}
	if rating != nil {
		l.Rating = normalize.ToFloat(*rating)
	}
	if v := p.itemprop("reviewCount"); v != nil {
		l.ReviewCount = normalize.ToInt(*v)
	}
	l.Images = productImages(p)

	if ld := jsonLD(p.doc, isProduct); ld != nil {
		fillFromProductLD(&l, ld)
	}
	if l.Name == nil {
		l.Name = p.text("h1")
	}
	return l
}

func fillFromProductLD(l *domain.Listing, ld map[string]any) {
	if l.Name == nil {
		l.Name = firstNonEmptyAlias(ld, productLDAliases, "name")
	}
	if l.Description == nil {
		if d := firstNonEmptyAlias(ld, productLDAliases, "description"); d != nil {
			l.Description = normalize.StripTags(*d)
		}
	}
	if l.Brand == nil {
		l.Brand = firstNonEmptyAlias(ld, productLDAliases, "brand")
	}
	if l.Category == nil {
		l.Category = firstNonEmptyAlias(ld, productLDAliases, "category")
	}
	if l.Price == nil {
		l.Price = getFloatFlexible(ld, productLDAliases["price"]...)
	}
	if l.Currency == nil {
		l.Currency = firstNonEmptyAlias(ld, productLDAliases, "currency")
	}
	if l.Rating == nil {
		l.Rating = getFloatFlexible(ld, productLDAliases["rating"]...)
	}
	if l.ReviewCount == nil {
		l.ReviewCount = getIntFlexible(ld, productLDAliases["reviews"]...)
	}
	if l.Images == nil {
		l.Images = normalize.NonEmpty(normalize.DedupeAbsoluteURLs(firstSliceStrings(ld, "image"), l.URL, normalize.ProductImageLimit))
		if l.Images == nil {
			if img := lookupStr(ld, "image"); img != "" {
				l.Images = normalize.DedupeAbsoluteURLs([]string{img}, l.URL, normalize.ProductImageLimit)
			}
		}
	}
}

// productImages lists og:image entries first, then every <img> src (or data-src).
func productImages(p *page) []string {
	var raw []string
	p.doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok {
			raw = append(raw, v)
		}
	})
	p.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if v := firstAttr(s, "src", "data-src"); v != "" {
			raw = append(raw, v)
		}
	})
	return normalize.NonEmpty(normalize.DedupeAbsoluteURLs(raw, p.url, normalize.ProductImageLimit))
}

func parseDecathlon(p *page) domain.Listing {
	l := parseCommonProduct(p)
	if b := p.meta("product:brand"); b != nil {
		l.Brand = b
	}
	if c := p.meta("product:category"); c != nil {
		l.Category = c
	}
	return l
}

var nutritionClass = regexp.MustCompile(`(?i)nutrition|macros`)

func parseMyProtein(p *page) domain.Listing {
	l := parseCommonProduct(p)
	l.Brand = p.meta("product:brand")
	if l.Brand == nil {
		l.Brand = strPtr("MyProtein")
	}
	l.Category = strPtr("nutrition")

	p.doc.Find("div[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !nutritionClass.MatchString(class) {
			return true
		}
		l.Nutrition = normalize.CleanText(s.Text())
		return false
	})
	return l
}

func parseProzis(p *page) domain.Listing {
	l := parseCommonProduct(p)
	l.Brand = strPtr("Prozis")
	return l
}

func parseGymshark(p *page) domain.Listing {
	l := parseCommonProduct(p)
	l.Brand = strPtr("Gymshark")
	l.Category = strPtr("vêtements")
	return l
}

// amazonSource prefers the SerpAPI amazon_product payload and falls back to the
// product page itself when SerpAPI is unavailable or fails.
type amazonSource struct {
	*htmlSource
	fetcher  domain.Fetcher
	shopping domain.ShoppingClient
}

func (s *amazonSource) FetchItem(ctx context.Context, itemURL string) ([]byte, error) {
	var serpErr error
	if s.shopping != nil {
		payload, err := s.shopping.AmazonProduct(ctx, itemURL)
		if err == nil && len(payload) > 0 {
			if b, err := json.Marshal(payload); err == nil {
				return b, nil
			}
		}
		serpErr = err
	}
	if s.fetcher == nil {
		if serpErr == nil {
			serpErr = errors.New("amazon: no fetcher")
		}
		return nil, serpErr
	}
	return s.fetcher.Fetch(ctx, itemURL)
}

// ParseItem accepts either a SerpAPI JSON payload (leading '{') or product page HTML.
func (s *amazonSource) ParseItem(raw []byte, itemURL string) (domain.Listing, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return s.htmlSource.ParseItem(raw, itemURL)
	}
	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return domain.Listing{}, &domain.ParseError{Source: s.info.ID, URL: itemURL, Err: err}
	}
	l := domain.Listing{
		Kind:     s.info.Kind,
		Source:   s.info.ID,
		URL:      itemURL,
		Name:     firstNonEmptyAlias(m, amazonAliases, "name"),
		Brand:    firstNonEmptyAlias(m, amazonAliases, "brand"),
		Category: firstNonEmptyAlias(m, amazonAliases, "category"),
		Price:    getFloatFlexible(m, amazonAliases["price"]...),
		Rating:   getFloatFlexible(m, amazonAliases["rating"]...),
	}
	if d := firstNonEmptyAlias(m, amazonAliases, "description"); d != nil {
		l.Description = normalize.StripTags(*d)
	}
	l.ReviewCount = getIntFlexible(m, amazonAliases["reviews"]...)
	l.Images = normalize.NonEmpty(normalize.DedupeAbsoluteURLs(
		firstSliceStrings(m, amazonAliases["images"]...), itemURL, normalize.ProductImageLimit))
	return finishProduct(l), nil
}

// finishProduct drops numbers outside their domain (negative price or count, rating
// outside 0-5) and defaults the currency of a priced item.
func finishProduct(l domain.Listing) domain.Listing {
	l.Price = normalize.InRange(l.Price, 0, math.Inf(1))
	l.Rating = normalize.InRange(l.Rating, 0, normalize.MaxRating)
	l.ReviewCount = normalize.NonNegative(l.ReviewCount)
	if l.Price != nil && l.Currency == nil {
		l.Currency = strPtr(domain.DefaultCurrency)
	}
	return l
}

func strPtr(s string) *string { return &s }
