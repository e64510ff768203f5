package twitter

import (
	"context"
	"log/slog"

	"tweet_fetcher/internal/domain"
)

const SourceID = "twitter"

// Source adapts Client to the collection and backfill services.
type Source struct {
	client     *Client
	requireGeo bool
	logger     *slog.Logger
}

// NewSource creates a source. With requireGeo, only posts carrying a geo tag
// with coordinates become records.
func NewSource(client *Client, requireGeo bool, logger *slog.Logger) *Source {
	return &Source{
		client:     client,
		requireGeo: requireGeo,
		logger:     logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// SearchPage fetches one page of a window and maps it to records.
func (s *Source) SearchPage(ctx context.Context, keyword string, w domain.SearchWindow, pageSize int, cursor domain.PageCursor) (*domain.Page, error) {
	resp, err := s.client.Search(ctx, SearchQuery{
		Keyword:    keyword,
		StartTime:  w.Start,
		EndTime:    w.End,
		MaxResults: pageSize,
		NextToken:  string(cursor),
	})
	if err != nil {
		return nil, err
	}

	records, stats := Extract(resp, s.requireGeo)

	s.logger.Debug("fetched page",
		"cursor", cursor,
		"result_count", resp.Meta.ResultCount,
		"accepted", stats.Accepted,
		"next_token", resp.Meta.NextToken.Value,
	)

	return &domain.Page{
		ResultCount: resp.Meta.ResultCount,
		HasNext:     resp.Meta.NextToken.Present,
		Next:        domain.PageCursor(resp.Meta.NextToken.Value),
		Records:     records,
		Stats:       stats,
	}, nil
}

// LookupUsers returns the profile locations of up to MaxLookupIDs authors.
func (s *Source) LookupUsers(ctx context.Context, ids []string) ([]domain.AuthorLocation, error) {
	resp, err := s.client.LookupUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, e := range resp.Errors {
		s.logger.Debug("user lookup error", "value", e.Value, "detail", e.Detail)
	}

	out := make([]domain.AuthorLocation, 0, len(resp.Data))
	for _, u := range resp.Data {
		out = append(out, domain.AuthorLocation{AuthorID: u.ID, Location: u.Location})
	}
	return out, nil
}
