package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tweet_fetcher/internal/domain"
	"tweet_fetcher/internal/service/mocks"
)

type LocationServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	records   *mocks.MockRecordStore
	locations *mocks.MockLocationStore
	txManager *mocks.MockTransactionManager
	resolver  *mocks.MockResolver
	pacer     *mocks.MockPacer

	service *LocationService
}

func (s *LocationServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.records = mocks.NewMockRecordStore(s.ctrl)
	s.locations = mocks.NewMockLocationStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.pacer = mocks.NewMockPacer(s.ctrl)

	s.source.EXPECT().ID().Return("test-source").AnyTimes()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewLocationService(
		s.source,
		s.records,
		s.locations,
		s.txManager,
		s.resolver,
		s.pacer,
		nil,
		logger,
	)
}

func (s *LocationServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestLocationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LocationServiceTestSuite))
}

func (s *LocationServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *LocationServiceTestSuite) TestRun_ResolvesAndBackfills() {
	ctx := context.Background()
	users := []domain.AuthorLocation{
		{AuthorID: "1", Location: "Tokyo, Japan"},
		{AuthorID: "2", Location: ""},
	}
	tokyo := domain.Location{Latitude: 35.6897, Longitude: 139.6922, City: "tokyo", Country: "japan"}

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return([]string{"1", "2", "bot_3", ""}, nil)
	s.source.EXPECT().LookupUsers(ctx, []string{"1", "2"}).Return(users, nil)
	s.pacer.EXPECT().Wait(ctx).Return(nil)
	s.resolver.EXPECT().Resolve(users).Return(
		map[string]domain.Location{"1": tokyo},
		domain.ResolveStats{Resolved: 1, Empty: 1},
	)

	s.expectTransaction()
	s.locations.EXPECT().UpsertBatch(ctx, map[string]domain.Location{"1": tokyo}).Return(nil)
	s.records.EXPECT().BackfillLocations(ctx).Return(int64(12), nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(2, stats.Authors)
	s.Equal(1, stats.Batches)
	s.Equal(1, stats.Resolve.Resolved)
	s.Equal(1, stats.Resolve.Empty)
	s.Equal(int64(12), stats.Updated)
}

func (s *LocationServiceTestSuite) TestRun_BatchesByHundred() {
	ctx := context.Background()
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = strconv.Itoa(1000 + i)
	}

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return(ids, nil)
	gomock.InOrder(
		s.source.EXPECT().LookupUsers(ctx, ids[0:100]).Return(nil, nil),
		s.source.EXPECT().LookupUsers(ctx, ids[100:200]).Return(nil, nil),
		s.source.EXPECT().LookupUsers(ctx, ids[200:250]).Return(nil, nil),
	)
	s.pacer.EXPECT().Wait(ctx).Return(nil).Times(3)
	s.resolver.EXPECT().Resolve(gomock.Any()).Return(nil, domain.ResolveStats{}).Times(3)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(250, stats.Authors)
	s.Equal(3, stats.Batches)
	s.Equal(int64(0), stats.Updated)
}

func (s *LocationServiceTestSuite) TestRun_NoAuthors() {
	ctx := context.Background()

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return(nil, nil)

	stats, err := s.service.Run(ctx)

	s.NoError(err)
	s.Equal(0, stats.Authors)
	s.Equal(0, stats.Batches)
}

func (s *LocationServiceTestSuite) TestRun_LookupError() {
	ctx := context.Background()

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return([]string{"1"}, nil)
	s.source.EXPECT().LookupUsers(ctx, []string{"1"}).Return(nil, errors.New("api error"))
	s.pacer.EXPECT().Wait(ctx).Return(nil)

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Contains(err.Error(), "lookup users")
	s.Equal(0, stats.Batches)
}

func (s *LocationServiceTestSuite) TestRun_UpsertErrorSkipsBackfill() {
	ctx := context.Background()
	users := []domain.AuthorLocation{{AuthorID: "1", Location: "Tokyo, Japan"}}
	resolved := map[string]domain.Location{"1": {City: "tokyo", Country: "japan"}}

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return([]string{"1"}, nil)
	s.source.EXPECT().LookupUsers(ctx, []string{"1"}).Return(users, nil)
	s.pacer.EXPECT().Wait(ctx).Return(nil)
	s.resolver.EXPECT().Resolve(users).Return(resolved, domain.ResolveStats{Resolved: 1})

	s.expectTransaction()
	s.locations.EXPECT().UpsertBatch(ctx, resolved).Return(errors.New("db down"))

	_, err := s.service.Run(ctx)

	s.Error(err)
	s.Contains(err.Error(), "upsert locations")
}

func (s *LocationServiceTestSuite) TestRun_ListError() {
	ctx := context.Background()

	s.records.EXPECT().DistinctAuthorIDs(ctx).Return(nil, errors.New("db down"))

	stats, err := s.service.Run(ctx)

	s.Error(err)
	s.Nil(stats)
}

func TestNumericIDs(t *testing.T) {
	got := numericIDs([]string{"123", "", "12a", "\u0663", "007", " 1"})
	assert.Equal(t, []string{"123", "007"}, got)
}
