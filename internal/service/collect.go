package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tweet_fetcher/internal/config"
	"tweet_fetcher/internal/domain"
	"tweet_fetcher/internal/metrics"
	"tweet_fetcher/internal/window"
)

type CollectService struct {
	source    Source
	records   RecordStore
	runState  RunStateStore
	txManager TransactionManager
	publisher Publisher
	pacer     Pacer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	config    config.CollectConfig
	pageSize  int

	// Clock returns the reference "now" of a run.
	Clock func() time.Time
}

func NewCollectService(
	source Source,
	records RecordStore,
	runState RunStateStore,
	txManager TransactionManager,
	publisher Publisher,
	pacer Pacer,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg config.CollectConfig,
	pageSize int,
) *CollectService {
	return &CollectService{
		source:    source,
		records:   records,
		runState:  runState,
		txManager: txManager,
		publisher: publisher,
		pacer:     pacer,
		metrics:   m,
		logger:    logger.With("source", source.ID(), "keyword", cfg.Keyword),
		config:    cfg,
		pageSize:  pageSize,
		Clock:     time.Now,
	}
}

// Run collects every planned window, oldest first. Records sunk before a
// failure are kept.
func (s *CollectService) Run(ctx context.Context) (*domain.CollectStats, error) {
	startTime := time.Now()
	windows := window.Plan(s.config.Days, s.Clock())
	stats := &domain.CollectStats{RunID: uuid.NewString(), Keyword: s.config.Keyword}
	logger := s.logger.With("run_id", stats.RunID)

	logger.Info("starting collection",
		"days", s.config.Days,
		"windows", len(windows),
		"day_cap", s.config.DayCap,
		"require_geo", s.config.GeoRequired(),
	)

	for _, w := range windows {
		if err := s.collectWindow(ctx, logger, w, stats); err != nil {
			stats.Duration = time.Since(startTime)
			return stats, fmt.Errorf("collect window %s: %w", w.Start.Format(time.RFC3339), err)
		}
		stats.Windows++
	}

	if len(windows) > 0 {
		if err := s.updateRunState(ctx, stats, windows[len(windows)-1]); err != nil {
			return stats, fmt.Errorf("update run state: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)

	logger.Info("collection completed",
		"windows", stats.Windows,
		"requests", stats.Requests,
		"scanned", stats.Scanned,
		"accepted", stats.Accepted,
		"skipped", stats.Extract.Skipped(),
		"unknown_places", stats.Extract.UnknownPlace,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

// CollectWindow drives one window to completion and returns the number of
// records accepted for it.
func (s *CollectService) CollectWindow(ctx context.Context, w domain.SearchWindow) (int, error) {
	stats := &domain.CollectStats{Keyword: s.config.Keyword}
	err := s.collectWindow(ctx, s.logger, w, stats)
	return stats.Accepted, err
}

func (s *CollectService) collectWindow(ctx context.Context, logger *slog.Logger, w domain.SearchWindow, stats *domain.CollectStats) error {
	logger = logger.With("start", w.Start, "end", w.End)
	accepted := 0
	var cursor domain.PageCursor

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.config.DayCap > 0 && accepted >= s.config.DayCap {
			logger.Info("day cap reached", "accepted", accepted)
			break
		}

		page, err := s.source.SearchPage(ctx, s.config.Keyword, w, s.pageSize, cursor)
		stats.Requests++
		s.metrics.ObserveRequest(err)

		if err != nil {
			_ = s.pacer.Wait(ctx)
			return fmt.Errorf("search page: %w", err)
		}

		stats.Scanned += page.ResultCount
		stats.Extract.Add(page.Stats)

		var sinkErr error
		if page.ResultCount > 0 {
			var n, published int
			n, published, sinkErr = s.sink(ctx, s.capRecords(page, accepted))
			accepted += n
			stats.Accepted += n
			stats.Published += published
		}

		// Pacing follows the sink so a cancelled wait keeps the fetched page.
		waitErr := s.pacer.Wait(ctx)
		if sinkErr != nil {
			return sinkErr
		}
		if waitErr != nil {
			return fmt.Errorf("pace requests: %w", waitErr)
		}

		logger.Debug("page processed",
			"cursor", cursor,
			"result_count", page.ResultCount,
			"accepted", accepted,
		)

		// No next_token key, a null token or an empty page all end the window.
		if !page.HasNext || page.Next == "" || page.ResultCount <= 0 {
			break
		}
		cursor = page.Next
	}

	logger.Info("window completed", "accepted", accepted)
	return nil
}

// capRecords trims a page to what is left of the day cap.
func (s *CollectService) capRecords(page *domain.Page, accepted int) []domain.Record {
	records := page.Records
	capped := 0
	if s.config.DayCap > 0 {
		if remaining := s.config.DayCap - accepted; len(records) > remaining {
			capped = len(records) - remaining
			records = records[:remaining]
		}
	}
	s.metrics.ObservePage(page.Stats, capped)
	return records
}

// sink stores records in one transaction and then publishes them. A failed
// publish is logged; the records are already stored.
func (s *CollectService) sink(ctx context.Context, records []domain.Record) (saved, published int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.records.SaveBatch(txCtx, records); err != nil {
			return fmt.Errorf("save records: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if s.publisher != nil {
		for i := range records {
			if err := s.publisher.Publish(ctx, &records[i]); err != nil {
				s.logger.Warn("publish failed", "post_id", records[i].PostID, "error", err)
				continue
			}
			published++
		}
	}

	return len(records), published, nil
}

func (s *CollectService) updateRunState(ctx context.Context, stats *domain.CollectStats, last domain.SearchWindow) error {
	state, err := s.runState.Get(ctx, s.config.Keyword)
	if err != nil {
		return err
	}

	state.Keyword = s.config.Keyword
	state.LastRunAt = time.Now()
	state.LastWindowEnd = last.End
	state.TotalCollected += int64(stats.Accepted)

	return s.runState.Update(ctx, state)
}
