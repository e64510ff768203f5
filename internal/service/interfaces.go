package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"tweet_fetcher/internal/domain"
)

type Source interface {
	ID() string
	SearchPage(ctx context.Context, keyword string, w domain.SearchWindow, pageSize int, cursor domain.PageCursor) (*domain.Page, error)
	LookupUsers(ctx context.Context, ids []string) ([]domain.AuthorLocation, error)
}

type RecordStore interface {
	SaveBatch(ctx context.Context, records []domain.Record) (int64, error)
	DistinctAuthorIDs(ctx context.Context) ([]string, error)
	BackfillLocations(ctx context.Context) (int64, error)
}

type LocationStore interface {
	UpsertBatch(ctx context.Context, locations map[string]domain.Location) error
}

type RunStateStore interface {
	Get(ctx context.Context, keyword string) (*domain.RunState, error)
	Update(ctx context.Context, state *domain.RunState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, record *domain.Record) error
	Close() error
}

// Pacer spaces out requests to the upstream API. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

type Resolver interface {
	Resolve(entries []domain.AuthorLocation) (map[string]domain.Location, domain.ResolveStats)
}
