package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tweet_fetcher/internal/domain"
	"tweet_fetcher/internal/metrics"
)

// LookupBatchSize is the number of author ids sent per users lookup.
const LookupBatchSize = 100

// LocationService attaches resolved author locations to stored records.
type LocationService struct {
	source    Source
	records   RecordStore
	locations LocationStore
	txManager TransactionManager
	resolver  Resolver
	pacer     Pacer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewLocationService(
	source Source,
	records RecordStore,
	locations LocationStore,
	txManager TransactionManager,
	resolver Resolver,
	pacer Pacer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LocationService {
	return &LocationService{
		source:    source,
		records:   records,
		locations: locations,
		txManager: txManager,
		resolver:  resolver,
		pacer:     pacer,
		metrics:   m,
		logger:    logger.With("source", source.ID(), "component", "locations"),
	}
}

func (s *LocationService) Run(ctx context.Context) (*domain.BackfillStats, error) {
	startTime := time.Now()

	ids, err := s.records.DistinctAuthorIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	ids = numericIDs(ids)

	stats := &domain.BackfillStats{RunID: uuid.NewString(), Authors: len(ids)}
	logger := s.logger.With("run_id", stats.RunID)

	logger.Info("starting location backfill", "authors", len(ids))
	resolved := make(map[string]domain.Location)

	for start := 0; start < len(ids); start += LookupBatchSize {
		end := min(start+LookupBatchSize, len(ids))
		logger.Debug("looking up authors", "from", start, "to", end)

		users, err := s.source.LookupUsers(ctx, ids[start:end])
		if waitErr := s.pacer.Wait(ctx); waitErr != nil && err == nil {
			err = waitErr
		}
		if err != nil {
			stats.Duration = time.Since(startTime)
			return stats, fmt.Errorf("lookup users: %w", err)
		}
		stats.Batches++

		locs, rs := s.resolver.Resolve(users)
		stats.Resolve.Add(rs)
		s.metrics.ObserveResolve(rs)
		for id, loc := range locs {
			resolved[id] = loc
		}
	}

	if len(resolved) > 0 {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.locations.UpsertBatch(txCtx, resolved); err != nil {
				return fmt.Errorf("upsert locations: %w", err)
			}
			updated, err := s.records.BackfillLocations(txCtx)
			if err != nil {
				return fmt.Errorf("backfill records: %w", err)
			}
			stats.Updated = updated
			return nil
		})
		if err != nil {
			stats.Duration = time.Since(startTime)
			return stats, err
		}
		s.metrics.ObserveBackfill(stats.Updated)
	}

	stats.Duration = time.Since(startTime)

	logger.Info("location backfill completed",
		"authors", stats.Authors,
		"batches", stats.Batches,
		"resolved", stats.Resolve.Resolved,
		"missed", stats.Resolve.Missed,
		"empty", stats.Resolve.Empty,
		"updated", stats.Updated,
		"duration", stats.Duration,
	)

	return stats, nil
}

// numericIDs keeps the ids made only of ASCII digits.
func numericIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if isDigits(id) {
			out = append(out, id)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
