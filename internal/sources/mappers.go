package sources

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fitidea/internal/normalize"
)

/********** alias registries (single source of truth) **********/

var placeAliases = map[string][]string{
	"name":      {"name", "legalName"},
	"street":    {"address.streetAddress", "streetAddress"},
	"city":      {"address.addressLocality", "addressLocality"},
	"country":   {"address.addressCountry.name", "address.addressCountry"},
	"phone":     {"telephone", "contactPoint.telephone"},
	"price":     {"priceRange"},
	"latitude":  {"geo.latitude", "address.latitude", "latitude"},
	"longitude": {"geo.longitude", "address.longitude", "longitude"},
}

var productLDAliases = map[string][]string{
	"name":        {"name"},
	"description": {"description"},
	"brand":       {"brand.name", "brand"},
	"category":    {"category"},
	"price":       {"offers.price", "offers.lowPrice", "offers.0.price"},
	"currency":    {"offers.priceCurrency", "offers.0.priceCurrency"},
	"rating":      {"aggregateRating.ratingValue"},
	"reviews":     {"aggregateRating.reviewCount", "aggregateRating.ratingCount"},
}

// amazon_product payloads have moved fields under product_results over time.
var amazonAliases = map[string][]string{
	"name":        {"title", "product_results.title"},
	"description": {"description", "product_results.description", "about_item.0"},
	"brand":       {"brand", "product_results.brand"},
	"category":    {"category", "product_results.category", "categories.0.name"},
	"price":       {"price", "product_results.price", "product_results.extracted_price", "extracted_price"},
	"rating":      {"rating", "product_results.rating"},
	"reviews":     {"reviews", "product_results.reviews"},
	"images":      {"images", "thumbnails", "product_results.thumbnails", "product_results.images"},
}

var ldPlaceTypes = map[string]struct{}{
	"LocalBusiness": {}, "SportsActivityLocation": {}, "ExerciseGym": {}, "HealthClub": {},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps; numeric parts index into slices.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		switch obj := cur.(type) {
		case map[string]any:
			v, ok := obj[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(obj) {
				return nil
			}
			cur = obj[i]
		default:
			return nil
		}
	}
	return cur
}

// lookupStr returns a scalar at path as text, or "".
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty cleaned string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := normalize.CleanText(lookupStr(m, p)); s != nil {
			return s
		}
	}
	return nil
}

// getFloatFlexible: number from several paths (float64 or strings like "8,0" / "29,99 €").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case string:
			if f := normalize.ToFloat(v); f != nil {
				return f
			}
		}
	}
	return nil
}

// getIntFlexible: whole number from several paths.
func getIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if v == float64(int(v)) {
				x := int(v)
				return &x
			}
		case string:
			if n := normalize.ToInt(v); n != nil {
				return n
			}
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {url/src/link/name}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				for _, f := range []string{"url", "src", "link", "name"} {
					if u, ok := t[f].(string); ok && u != "" {
						out = append(out, u)
						break
					}
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

/********** JSON-LD **********/

// jsonLD returns the first JSON-LD object whose @type is accepted by want.
// Arrays and @graph containers are flattened; broken scripts are skipped.
func jsonLD(doc *goquery.Document, want func(types []string) bool) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		for _, obj := range flattenLD(data) {
			if want(ldTypes(obj)) {
				found = obj
				return false
			}
		}
		return true
	})
	return found
}

func flattenLD(data any) []map[string]any {
	var out []map[string]any
	switch t := data.(type) {
	case []any:
		for _, it := range t {
			out = append(out, flattenLD(it)...)
		}
	case map[string]any:
		if g, ok := t["@graph"]; ok {
			out = append(out, flattenLD(g)...)
		}
		out = append(out, t)
	}
	return out
}

func ldTypes(obj map[string]any) []string {
	switch t := obj["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func isPlace(types []string) bool {
	for _, t := range types {
		if _, ok := ldPlaceTypes[t]; ok {
			return true
		}
	}
	return false
}

func isProduct(types []string) bool {
	for _, t := range types {
		if t == "Product" {
			return true
		}
	}
	return false
}

// openingHoursLD maps openingHoursSpecification entries to day → "opens-closes".
// dayOfWeek may be a single day or a list, and is often a schema.org URL.
func openingHoursLD(obj map[string]any) map[string]string {
	specs, _ := obj["openingHoursSpecification"].([]any)
	out := map[string]string{}
	for _, it := range specs {
		e, ok := it.(map[string]any)
		if !ok {
			continue
		}
		opens, closes := lookupStr(e, "opens"), lookupStr(e, "closes")
		if opens == "" || closes == "" {
			continue
		}
		var days []string
		switch d := e["dayOfWeek"].(type) {
		case string:
			days = []string{d}
		case []any:
			for _, v := range d {
				if s, ok := v.(string); ok {
					days = append(days, s)
				}
			}
		}
		for _, d := range days {
			d = strings.TrimPrefix(strings.TrimPrefix(d, "https://schema.org/"), "http://schema.org/")
			if d != "" {
				out[d] = opens + "-" + closes
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
