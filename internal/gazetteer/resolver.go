package gazetteer

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tweet_fetcher/internal/domain"
)

// Normalize strips diacritics, lower-cases and trims s.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.TrimSpace(strings.ToLower(stripped))
}

// StripPunctuation keeps letters, digits and whitespace.
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// SplitCountryCity extracts a country and the remaining city candidate from
// free text. Countries are scanned in the given order; each one found in the
// text is removed from it and becomes the match, so the last match wins.
func SplitCountryCity(countries []string, text string) (country, city string) {
	rest := Normalize(text)

	for _, c := range countries {
		c = strings.TrimSpace(strings.ToLower(c))
		if c == "" {
			continue
		}
		if strings.Contains(rest, c) {
			rest = strings.ReplaceAll(rest, c, "")
			country = c
		}
	}

	return country, strings.TrimSpace(StripPunctuation(rest))
}

// Resolver resolves author locations against a gazetteer.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	gazetteer *Gazetteer
	countries []string
	logger    *slog.Logger
}

// NewResolver creates a resolver scanning the gazetteer's countries in
// lexicographic order.
func NewResolver(g *Gazetteer, logger *slog.Logger) *Resolver {
	return &Resolver{
		gazetteer: g,
		countries: g.Countries(),
		logger:    logger.With("component", "resolver"),
	}
}

// ResolveOne resolves a single free-text location.
func (r *Resolver) ResolveOne(text string) (domain.Location, bool) {
	country, city := SplitCountryCity(r.countries, text)

	loc, ok := r.gazetteer.Lookup(strings.TrimSpace(country), city)
	if !ok {
		return domain.Location{}, false
	}

	loc.City = city
	loc.Country = country
	return loc, true
}

// Resolve resolves every author location independently. Authors with an empty
// location are skipped and authors without a match are left out of the result.
func (r *Resolver) Resolve(entries []domain.AuthorLocation) (map[string]domain.Location, domain.ResolveStats) {
	var stats domain.ResolveStats
	out := make(map[string]domain.Location, len(entries))

	for _, e := range entries {
		if strings.TrimSpace(e.Location) == "" {
			stats.Empty++
			continue
		}

		loc, ok := r.ResolveOne(e.Location)
		if !ok {
			stats.Missed++
			r.logger.Debug("location not found",
				"author_id", e.AuthorID,
				"location", e.Location,
			)
			continue
		}

		out[e.AuthorID] = loc
		stats.Resolved++
	}

	return out, stats
}
