package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fitidea/internal/domain"
	"fitidea/internal/sources"
)

const (
	PlaceholderLogo = "https://via.placeholder.com/150?text=Fitidea"
	LogoTTL         = 30 * 24 * time.Hour
)

// Homepages maps a gym brand to its official site.
type Homepages interface {
	Homepage(brand string) string
}

type LogoService struct {
	sites   Homepages
	fetcher domain.Fetcher
	cache   domain.Cache
	ttl     time.Duration
}

func NewLogoService(h Homepages, f domain.Fetcher, c domain.Cache) *LogoService {
	return &LogoService{sites: h, fetcher: f, cache: c, ttl: LogoTTL}
}

// ResolveLogo returns the brand's logo URL, or PlaceholderLogo when the brand is
// unknown or no logo can be found. It never fails. Only real logos are cached.
func (s *LogoService) ResolveLogo(ctx context.Context, brand string) string {
	b := strings.ToLower(strings.TrimSpace(brand))
	if b == "" {
		return PlaceholderLogo
	}
	key := "gym_logo:" + b

	var cached string
	if ok, _ := s.cache.Get(ctx, key, &cached); ok && cached != "" {
		return cached
	}

	site := s.sites.Homepage(b)
	if site == "" {
		return PlaceholderLogo
	}
	raw, err := s.fetcher.Fetch(ctx, site)
	if err != nil {
		log.Warn().Str("brand", b).Err(err).Msg("logo homepage fetch failed")
		return PlaceholderLogo
	}
	logo := sources.ExtractLogo(raw, site)
	if logo == "" {
		log.Debug().Str("brand", b).Msg("no logo found on homepage")
		return PlaceholderLogo
	}
	_ = s.cache.Set(ctx, key, logo, s.ttl)
	return logo
}
