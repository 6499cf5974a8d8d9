package sources

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fitidea/internal/normalize"
)

func parseHTML(raw []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(raw))
}

// discoverLinks resolves the href of every element matching selector against base.
// Duplicates are dropped keeping the first occurrence.
func discoverLinks(doc *goquery.Document, base, selector string) []string {
	var hrefs []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			href = strings.TrimSpace(href)
			if href != "" && !strings.HasPrefix(href, "#") &&
				!strings.HasPrefix(href, "javascript:") && !strings.HasPrefix(href, "mailto:") {
				hrefs = append(hrefs, href)
			}
		}
	})
	return normalize.DedupeAbsoluteURLs(hrefs, base, 0)
}

// page is a parsed item document plus the URL it was fetched from.
type page struct {
	doc *goquery.Document
	url string
}

// text returns the cleaned text of the first match.
func (p *page) text(selector string) *string {
	s := p.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return normalize.CleanText(s.Text())
}

// joinedText is like text but separates the element's text nodes with sep.
func (p *page) joinedText(selector, sep string) *string {
	s := p.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return normalize.CleanText(strings.Join(textParts(s), sep))
}

// list returns the cleaned, de-duplicated texts of every match.
func (p *page) list(selector string) []string {
	var raw []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw = append(raw, s.Text())
	})
	return normalize.CleanList(raw)
}

// hoursLines renders each match as "part: part" so that
// <li><span>Lundi</span><span>6h-23h</span></li> reads "Lundi: 6h-23h".
func (p *page) hoursLines(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		var b strings.Builder
		for _, part := range textParts(s) {
			if b.Len() > 0 {
				if strings.HasSuffix(b.String(), ":") {
					b.WriteString(" ")
				} else {
					b.WriteString(": ")
				}
			}
			b.WriteString(part)
		}
		out = append(out, b.String())
	})
	return out
}

// meta reads <meta property=...> first, then <meta name=...>.
func (p *page) meta(property string) *string {
	for _, sel := range []string{`meta[property="` + property + `"]`, `meta[name="` + property + `"]`} {
		if v, ok := p.doc.Find(sel).First().Attr("content"); ok {
			if c := normalize.CleanText(v); c != nil {
				return c
			}
		}
	}
	return nil
}

func (p *page) itemprop(name string) *string {
	s := p.doc.Find(`[itemprop="` + name + `"]`).First()
	if s.Length() == 0 {
		return nil
	}
	if v, ok := s.Attr("content"); ok {
		return normalize.CleanText(v)
	}
	return normalize.CleanText(s.Text())
}

// phone reads the first tel: link.
func (p *page) phone() *string {
	return p.text(`a[href^='tel']`)
}

// imgSources collects data-src (preferred, lazy loading) or src of every matching <img>.
func (p *page) imgSources(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v := firstAttr(s, "data-src", "src"); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// gallery returns up to GalleryLimit absolute, de-duplicated photo URLs.
func (p *page) gallery(selector string) []string {
	return normalize.NonEmpty(normalize.DedupeAbsoluteURLs(p.imgSources(selector), p.url, normalize.GalleryLimit))
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// textParts returns the trimmed, non-empty text nodes under s in document order.
func textParts(s *goquery.Selection) []string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
			return
		}
		parts = append(parts, textParts(c)...)
	})
	return parts
}
