package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweet_fetcher/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

// recordArgs matches the bound values of records, checking post ids only.
func recordArgs(postIDs ...string) []driver.Value {
	args := make([]driver.Value, 0, len(postIDs)*len(recordColumns))
	for _, id := range postIDs {
		args = append(args, id)
		for range recordColumns[1:] {
			args = append(args, sqlmock.AnyArg())
		}
	}
	return args
}

func TestRecordStore_SaveBatch(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tweets (post_id, author_id, created_at,")).
		WithArgs(recordArgs("1", "2")...).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.SaveBatch(context.Background(), []domain.Record{
		{PostID: "1", AuthorID: "10", CreatedAt: time.Now()},
		{PostID: "2", AuthorID: "11", CreatedAt: time.Now()},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_SaveBatch_PlaceholdersAndConflict(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	mock.ExpectExec(`\$17\), \(\$18, .*\$34\) ON CONFLICT \(post_id\) DO UPDATE SET author_id = EXCLUDED\.author_id, .* collected_at = NOW\(\)`).
		WithArgs(recordArgs("1", "2")...).
		WillReturnResult(sqlmock.NewResult(0, 2))

	_, err := store.SaveBatch(context.Background(), []domain.Record{{PostID: "1"}, {PostID: "2"}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_SaveBatch_DedupesPostIDs(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	args := recordArgs("1")
	args[len(args)-1] = "edited"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tweets")).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.SaveBatch(context.Background(), []domain.Record{
		{PostID: "1", Text: "original"},
		{PostID: "1", Text: "edited"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_SaveBatch_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	n, err := store.SaveBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_DistinctAuthorIDs(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT author_id FROM tweets")).
		WillReturnRows(sqlmock.NewRows([]string{"author_id"}).AddRow("10").AddRow("20"))

	ids, err := store.DistinctAuthorIDs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_BackfillLocations(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRecordStore(db)

	mock.ExpectExec(`UPDATE tweets t SET\s+resolved_latitude = l\.latitude.*FROM author_locations l\s+WHERE l\.author_id = t\.author_id`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.BackfillLocations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationStore_UpsertBatch_SortedByAuthor(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLocationStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_locations (author_id, latitude, longitude, city, country) VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10) ON CONFLICT (author_id)")).
		WithArgs(
			"10", 35.6897, 139.6922, "tokyo", "japan",
			"11", 48.8566, 2.3522, "paris", "france",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.UpsertBatch(context.Background(), map[string]domain.Location{
		"11": {Latitude: 48.8566, Longitude: 2.3522, City: "paris", Country: "france"},
		"10": {Latitude: 35.6897, Longitude: 139.6922, City: "tokyo", Country: "japan"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func manyLocations(n int) map[string]domain.Location {
	locations := make(map[string]domain.Location, n)
	for i := 0; i < n; i++ {
		locations[fmt.Sprintf("%05d", i)] = domain.Location{Latitude: 1, Longitude: 2, City: "tokyo", Country: "japan"}
	}
	return locations
}

func TestLocationStore_UpsertBatch_ChunksInsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	store := NewLocationStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`VALUES \(\$1, .*\(\$4996, \$4997, \$4998, \$4999, \$5000\) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(`VALUES \(\$1, .*\(\$4996, \$4997, \$4998, \$4999, \$5000\) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(`VALUES \(\$1, .*\(\$2496, \$2497, \$2498, \$2499, \$2500\) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 500))
	mock.ExpectCommit()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		return store.UpsertBatch(ctx, manyLocations(2500))
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationStore_UpsertBatch_ChunkStartsAfterPreviousIDs(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLocationStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_locations")).
		WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_locations")).
		WithArgs("01000", 1.0, 2.0, "tokyo", "japan").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertBatch(context.Background(), manyLocations(1001))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationStore_UpsertBatch_ChunkErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	store := NewLocationStore(db)
	want := errors.New("too many parameters")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_locations")).
		WillReturnResult(sqlmock.NewResult(0, 1000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO author_locations")).
		WillReturnError(want)
	mock.ExpectRollback()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		return store.UpsertBatch(ctx, manyLocations(1500))
	})

	assert.ErrorIs(t, err, want)
	assert.Contains(t, err.Error(), "upsert locations 1000-1500")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStateStore_GetMissingReturnsEmptyState(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRunStateStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM collect_runs")).
		WithArgs("earthquake").
		WillReturnRows(sqlmock.NewRows([]string{"keyword", "last_run_at", "last_window_end", "total_collected"}))

	state, err := store.Get(context.Background(), "earthquake")

	require.NoError(t, err)
	assert.Equal(t, &domain.RunState{Keyword: "earthquake"}, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStateStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewRunStateStore(db)
	runAt := time.Date(2022, 3, 13, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM collect_runs")).
		WithArgs("earthquake").
		WillReturnRows(sqlmock.NewRows([]string{"keyword", "last_run_at", "last_window_end", "total_collected"}).
			AddRow("earthquake", runAt, runAt.Add(-time.Minute), int64(420)))

	state, err := store.Get(context.Background(), "earthquake")

	require.NoError(t, err)
	assert.Equal(t, int64(420), state.TotalCollected)
	assert.True(t, state.LastRunAt.Equal(runAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_CommitRoutesThroughTx(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	store := NewRecordStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tweets")).
		WithArgs(recordArgs("1")...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, GetTxFromContext(ctx))
		_, err := store.SaveBatch(ctx, []domain.Record{{PostID: "1"}})
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db)
	want := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.WithTransaction(context.Background(), func(context.Context) error {
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "9", itoa(9))
	assert.Equal(t, "17", itoa(17))
	assert.Equal(t, "1700", itoa(1700))
}
