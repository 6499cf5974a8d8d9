// Package normalize holds the pure field extractors shared by every source adapter.
// Nothing here does I/O; a nil return always means "absent".
package normalize

import (
	"html"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const (
	GalleryLimit      = 12
	ProductImageLimit = 10
	MaxRating         = 5
)

var strict = bluemonday.StrictPolicy()

// CleanText collapses runs of whitespace into single spaces. Empty input yields nil.
func CleanText(raw string) *string {
	s := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
	if s == "" {
		return nil
	}
	return &s
}

// StripTags removes any markup (descriptions scraped from meta tags sometimes carry it).
func StripTags(raw string) *string {
	return CleanText(html.UnescapeString(strict.Sanitize(raw)))
}

// ToFloat parses a human formatted number such as "29,99€", "1 299,00 €" or "$1,299.99".
// Anything that does not parse cleanly is absent.
func ToFloat(raw string) *float64 {
	s := numericToken(raw)
	if s == "" {
		return nil
	}

	lastComma, lastDot := strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// whichever separator comes last is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// numericToken returns the first run of digits in raw, keeping '.' and ',' separators and
// grouping spaces that sit between digits ("1 299,00"). A leading '-' is kept.
func numericToken(raw string) string {
	rs := []rune(raw)
	start := -1
	for i, r := range rs {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	var b strings.Builder
	if start > 0 && rs[start-1] == '-' {
		b.WriteRune('-')
	}
	for i := start; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			if i+1 < len(rs) && rs[i+1] >= '0' && rs[i+1] <= '9' {
				b.WriteRune(r)
				continue
			}
			return b.String()
		case r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\'':
			if i+1 < len(rs) && rs[i+1] >= '0' && rs[i+1] <= '9' {
				continue
			}
			return b.String()
		default:
			return b.String()
		}
	}
	return b.String()
}

// ToInt parses a count such as "1 234 avis". Fractions are rejected.
// InRange returns v when lo <= *v <= hi and nil otherwise.
func InRange(v *float64, lo, hi float64) *float64 {
	if v == nil || *v < lo || *v > hi {
		return nil
	}
	return v
}

// NonNegative returns v when it is zero or more and nil otherwise.
func NonNegative(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func ToInt(raw string) *int {
	f := ToFloat(raw)
	if f == nil || *f != math.Trunc(*f) || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

// ParseOpeningHours turns "Lundi: 06:00 - 23:00" lines into a day → range map.
// The line is split on its first colon; lines without one are skipped. No usable line
// yields nil.
func ParseOpeningHours(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		day, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		d := CleanText(day)
		if d == nil {
			continue
		}
		v := ""
		if p := CleanText(value); p != nil {
			v = *p
		}
		out[*d] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DedupeAbsoluteURLs resolves each entry against base, keeps the first occurrence of
// each URL and stops at limit (limit <= 0 means no cap).
func DedupeAbsoluteURLs(list []string, base string, limit int) []string {
	baseURL, _ := url.Parse(base)
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		abs := ref
		if baseURL != nil {
			abs = baseURL.ResolveReference(ref)
		}
		s := abs.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// AbsoluteURL resolves ref against base; it returns "" when either does not parse.
func AbsoluteURL(ref, base string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// StripQueryFragment drops the query string and fragment of an absolute URL.
func StripQueryFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.ForceQuery = false
	return u.String()
}

// NonEmpty returns nil for an empty slice so "no items found" stays absent.
func NonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}

// CleanList cleans every entry and drops empty ones, keeping order and first occurrences.
func CleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, raw := range in {
		c := CleanText(raw)
		if c == nil {
			continue
		}
		if _, ok := seen[*c]; ok {
			continue
		}
		seen[*c] = struct{}{}
		out = append(out, *c)
	}
	return out
}
