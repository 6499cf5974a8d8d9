package sources

import (
	"regexp"
	"strings"

	"fitidea/internal/domain"
	"fitidea/internal/normalize"
)

// placeLD returns the LocalBusiness-like JSON-LD block of a club page. Pages that only
// carry some other typed object with an address are accepted too.
func (p *page) placeLD() map[string]any {
	if obj := jsonLD(p.doc, isPlace); obj != nil {
		return obj
	}
	return jsonLD(p.doc, func(types []string) bool {
		for _, t := range types {
			if t != "" && t != "BreadcrumbList" && t != "WebSite" && t != "WebPage" && t != "Product" {
				return true
			}
		}
		return false
	})
}

// gymFromLD fills what a JSON-LD place block carries: name, street, city, country,
// coordinates, phone, price range, opening hours.
func gymFromLD(p *page, ld map[string]any) domain.Listing {
	l := domain.Listing{URL: p.url}
	if ld != nil {
		l.Name = firstNonEmptyAlias(ld, placeAliases, "name")
		l.Address = firstNonEmptyAlias(ld, placeAliases, "street")
		l.City = firstNonEmptyAlias(ld, placeAliases, "city")
		l.Country = firstNonEmptyAlias(ld, placeAliases, "country")
		l.Phone = firstNonEmptyAlias(ld, placeAliases, "phone")
		l.PriceRange = firstNonEmptyAlias(ld, placeAliases, "price")
		l.Lat = getFloatFlexible(ld, placeAliases["latitude"]...)
		l.Lon = getFloatFlexible(ld, placeAliases["longitude"]...)
		l.OpeningHours = openingHoursLD(ld)
	}
	if l.Name == nil {
		l.Name = p.text("h1")
	}
	website := p.url
	l.Website = &website
	return l
}

func parseBasicFit(p *page) domain.Listing {
	l := gymFromLD(p, p.placeLD())
	l.Photos = p.gallery("img")
	return withOpened247(l)
}

func parseFitnessPark(p *page) domain.Listing {
	l := gymFromLD(p, nil)
	l.Address = p.text(".club__infos__adresse")
	if l.Address != nil && strings.Contains(*l.Address, ",") {
		parts := strings.Split(*l.Address, ",")
		l.City = normalize.CleanText(parts[len(parts)-1])
	}
	l.Phone = p.phone()
	l.Photos = p.gallery(".slider img")
	l.Equipment = normalize.NonEmpty(p.list(".club__equipements li, .club__services li"))
	l.OpeningHours = normalize.ParseOpeningHours(p.hoursLines(".horaires li"))
	return withOpened247(l)
}

func parseNeoness(p *page) domain.Listing {
	l := gymFromLD(p, p.placeLD())
	l.Photos = p.gallery("img")
	l.Equipment = normalize.NonEmpty(p.list(".equipments li, .list-equipements li"))
	if hours := normalize.ParseOpeningHours(p.hoursLines(".horaires li, .schedule li")); hours != nil {
		l.OpeningHours = hours
	}
	return withOpened247(l)
}

func parseOnAir(p *page) domain.Listing {
	l := gymFromLD(p, nil)
	l.Address = p.joinedText(".club-info, .club__infos", " ")
	l.Phone = p.phone()
	l.Photos = p.gallery("img")
	l.Equipment = normalize.NonEmpty(p.list(".services li, .equipements li"))
	return withOpened247(l)
}

func parseKeepCool(p *page) domain.Listing {
	l := gymFromLD(p, p.placeLD())
	if l.Phone == nil {
		l.Phone = p.phone()
	}
	l.Photos = p.gallery("img")
	l.Equipment = normalize.NonEmpty(p.list(".equipements li, .equipments li"))
	if hours := normalize.ParseOpeningHours(p.hoursLines(".horaires li, .opening-hours li")); hours != nil {
		l.OpeningHours = hours
	}
	return withOpened247(l)
}

var around247 = regexp.MustCompile(`(?i)24\s*h?\s*/\s*24|24\s*/\s*7|00[:h]00\s*-\s*(24[:h]00|23[:h]59)`)

// withOpened247 sets Opened247 when the opening hours or the equipment list advertise
// round-the-clock access. It stays absent when the page says nothing about hours.
func withOpened247(l domain.Listing) domain.Listing {
	if len(l.OpeningHours) == 0 && len(l.Equipment) == 0 {
		return l
	}
	open := false
	for _, v := range l.OpeningHours {
		if around247.MatchString(v) {
			open = true
		}
	}
	for _, v := range l.Equipment {
		if around247.MatchString(v) {
			open = true
		}
	}
	if !open && len(l.OpeningHours) == 0 {
		return l
	}
	l.Opened247 = &open
	return l
}
