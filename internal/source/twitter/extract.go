package twitter

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/s2"

	"tweet_fetcher/internal/domain"
)

var (
	errMissingMetrics = errors.New("missing public_metrics")
	errBadCoordinates = errors.New("unreadable coordinates")
)

// Extract maps one search page to records. With requireGeo, posts without a
// geo tag or without a readable coordinate pair are dropped. Posts with shape
// errors are dropped and counted as malformed.
func Extract(resp *SearchResponse, requireGeo bool) ([]domain.Record, domain.ExtractStats) {
	var stats domain.ExtractStats
	if resp == nil || len(resp.Data) == 0 {
		return []domain.Record{}, stats
	}

	places := make(map[string]Place, len(resp.Includes.Places))
	for _, p := range resp.Includes.Places {
		places[p.ID] = p
	}

	records := make([]domain.Record, 0, len(resp.Data))
	for _, t := range resp.Data {
		stats.Scanned++

		var point *position
		if t.Geo == nil {
			if requireGeo {
				stats.NoGeo++
				continue
			}
		} else {
			pos, ok, err := coordinates(t.Geo)
			switch {
			case err != nil:
				if requireGeo {
					stats.Malformed++
					continue
				}
			case !ok:
				if requireGeo {
					stats.NoCoordinates++
					continue
				}
			default:
				point = &pos
			}
		}

		record, err := toRecord(t)
		if err != nil {
			stats.Malformed++
			continue
		}

		if point != nil {
			record.Latitude = ptr(point.lat)
			record.Longitude = ptr(point.lng)
		}

		if t.Geo != nil && t.Geo.PlaceID != "" {
			record.PlaceID = ptr(t.Geo.PlaceID)
			if p, ok := places[t.Geo.PlaceID]; ok {
				record.PlaceName = ptr(p.Name)
				record.PlaceFullName = ptr(p.FullName)
				record.PlaceCountry = ptr(p.Country)
				record.PlaceCountryCode = ptr(p.CountryCode)
			} else {
				stats.UnknownPlace++
			}
		}

		records = append(records, record)
		stats.Accepted++
	}

	return records, stats
}

type position struct {
	lat, lng float64
}

// coordinates reads the coordinate pair of a geo tag. It reports ok=false when
// the tag has no coordinates and an error when they are present but unreadable.
func coordinates(g *Geo) (position, bool, error) {
	if g.Coordinates == nil || g.Coordinates.Coordinates == nil {
		return position{}, false, nil
	}

	c := g.Coordinates.Coordinates
	if len(c) != 2 {
		return position{}, false, fmt.Errorf("%w: %d values", errBadCoordinates, len(c))
	}

	if !s2.LatLngFromDegrees(c[1], c[0]).IsValid() {
		return position{}, false, fmt.Errorf("%w: %v", errBadCoordinates, c)
	}
	return position{lat: c[1], lng: c[0]}, true, nil
}

func toRecord(t Tweet) (domain.Record, error) {
	m := t.PublicMetrics
	if m == nil || m.RetweetCount == nil || m.ReplyCount == nil || m.LikeCount == nil || m.QuoteCount == nil {
		return domain.Record{}, errMissingMetrics
	}

	createdAt, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse created_at: %w", err)
	}

	return domain.Record{
		AuthorID:     t.AuthorID,
		CreatedAt:    createdAt.UTC(),
		PostID:       t.ID,
		Language:     t.Lang,
		LikeCount:    *m.LikeCount,
		QuoteCount:   *m.QuoteCount,
		ReplyCount:   *m.ReplyCount,
		RetweetCount: *m.RetweetCount,
		Source:       t.Source,
		Text:         t.Text,
	}, nil
}

func ptr[T any](v T) *T {
	return &v
}
