package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fitidea/internal/normalize"
)

var logoPattern = regexp.MustCompile(`(?i)logo|header-logo|site-logo|navbar-logo`)

// ExtractLogo returns the first <img> on a homepage whose id, class, alt, src or
// data-src looks like a logo, as an absolute URL without query or fragment.
// It returns "" when nothing matches.
func ExtractLogo(raw []byte, homepage string) string {
	doc, err := parseHTML(raw)
	if err != nil {
		return ""
	}
	var found string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var attrs []string
		for _, a := range []string{"id", "class", "alt", "src", "data-src"} {
			if v, ok := s.Attr(a); ok && v != "" {
				attrs = append(attrs, v)
			}
		}
		if !logoPattern.MatchString(strings.Join(attrs, " ")) {
			return true
		}
		src := firstAttr(s, "src", "data-src")
		if src == "" {
			return true
		}
		if abs := normalize.AbsoluteURL(src, homepage); abs != "" {
			found = normalize.StripQueryFragment(abs)
			return false
		}
		return true
	})
	return found
}
