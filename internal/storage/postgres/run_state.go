package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"tweet_fetcher/internal/domain"
)

type RunStateStore struct {
	db *sqlx.DB
}

func NewRunStateStore(db *sqlx.DB) *RunStateStore {
	return &RunStateStore{db: db}
}

func (s *RunStateStore) Get(ctx context.Context, keyword string) (*domain.RunState, error) {
	var state domain.RunState
	query := `
		SELECT keyword, last_run_at, last_window_end, total_collected
		FROM collect_runs
		WHERE keyword = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, keyword)
	if errors.Is(err, sql.ErrNoRows) {
		// first run for this keyword
		return &domain.RunState{Keyword: keyword}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RunStateStore) Update(ctx context.Context, state *domain.RunState) error {
	query := `
		INSERT INTO collect_runs (keyword, last_run_at, last_window_end, total_collected)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (keyword) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_window_end = EXCLUDED.last_window_end,
			total_collected = EXCLUDED.total_collected`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.Keyword,
		state.LastRunAt,
		state.LastWindowEnd,
		state.TotalCollected,
	)
	return err
}
