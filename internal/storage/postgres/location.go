package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"tweet_fetcher/internal/domain"
)

// locationChunkSize bounds the rows per INSERT. Postgres accepts at most
// 65535 bind parameters in one statement.
const locationChunkSize = 1000

const locationColumnCount = 5

type LocationStore struct {
	db *sqlx.DB
}

func NewLocationStore(db *sqlx.DB) *LocationStore {
	return &LocationStore{db: db}
}

// UpsertBatch stores the resolved location of each author, keyed by author id.
// Large maps are written in chunks through the same executor, so a caller's
// transaction covers all of them.
func (s *LocationStore) UpsertBatch(ctx context.Context, locations map[string]domain.Location) error {
	if len(locations) == 0 {
		return nil
	}

	ids := make([]string, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	exec := GetExecutor(ctx, s.db)
	for start := 0; start < len(ids); start += locationChunkSize {
		end := min(start+locationChunkSize, len(ids))
		query, args := buildLocationUpsert(ids[start:end], locations)
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert locations %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func buildLocationUpsert(ids []string, locations map[string]domain.Location) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO author_locations (author_id, latitude, longitude, city, country) VALUES ")
	valueArgs := make([]interface{}, 0, len(ids)*locationColumnCount)

	for i, id := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($")
		sb.WriteString(itoa(i*locationColumnCount + 1))
		for j := 2; j <= locationColumnCount; j++ {
			sb.WriteString(", $")
			sb.WriteString(itoa(i*locationColumnCount + j))
		}
		sb.WriteString(")")
		loc := locations[id]
		valueArgs = append(valueArgs, id, loc.Latitude, loc.Longitude, loc.City, loc.Country)
	}
	sb.WriteString(` ON CONFLICT (author_id) DO UPDATE SET
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		city = EXCLUDED.city,
		country = EXCLUDED.country,
		updated_at = NOW()`)

	return sb.String(), valueArgs
}
