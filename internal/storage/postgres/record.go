package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"tweet_fetcher/internal/domain"
)

var recordColumns = []string{
	"post_id", "author_id", "created_at", "place_id", "latitude", "longitude",
	"place_name", "place_full_name", "place_country", "place_country_code",
	"language", "like_count", "quote_count", "reply_count", "retweet_count",
	"source", "text",
}

type RecordStore struct {
	db *sqlx.DB
}

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

// SaveBatch inserts records, replacing the stored copy of posts already
// present. Within one batch the last record of a post id wins.
func (s *RecordStore) SaveBatch(ctx context.Context, records []domain.Record) (int64, error) {
	records = dedupeByPostID(records)
	if len(records) == 0 {
		return 0, nil
	}

	n := len(recordColumns)

	var sb strings.Builder
	sb.WriteString("INSERT INTO tweets (")
	sb.WriteString(strings.Join(recordColumns, ", "))
	sb.WriteString(") VALUES ")
	valueArgs := make([]interface{}, 0, len(records)*n)

	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < n; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(itoa(i*n + j + 1))
		}
		sb.WriteString(")")
		valueArgs = append(valueArgs,
			r.PostID, r.AuthorID, r.CreatedAt, r.PlaceID, r.Latitude, r.Longitude,
			r.PlaceName, r.PlaceFullName, r.PlaceCountry, r.PlaceCountryCode,
			r.Language, r.LikeCount, r.QuoteCount, r.ReplyCount, r.RetweetCount,
			r.Source, r.Text,
		)
	}

	sb.WriteString(" ON CONFLICT (post_id) DO UPDATE SET ")
	for j, col := range recordColumns[1:] {
		if j > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(col)
	}
	sb.WriteString(", collected_at = NOW()")

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DistinctAuthorIDs returns the author ids of all stored records.
func (s *RecordStore) DistinctAuthorIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids,
		`SELECT DISTINCT author_id FROM tweets ORDER BY author_id`)
	return ids, err
}

// BackfillLocations copies resolved author locations onto the author's records.
func (s *RecordStore) BackfillLocations(ctx context.Context) (int64, error) {
	query := `
		UPDATE tweets t SET
			resolved_latitude = l.latitude,
			resolved_longitude = l.longitude,
			resolved_city = l.city,
			resolved_country = l.country
		FROM author_locations l
		WHERE l.author_id = t.author_id`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func dedupeByPostID(records []domain.Record) []domain.Record {
	pos := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.PostID]; ok {
			out[i] = r
			continue
		}
		pos[r.PostID] = len(out)
		out = append(out, r)
	}
	return out
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
