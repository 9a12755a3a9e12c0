package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agri-compath/internal/database"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"golang.org/x/sync/errgroup"
)

// Fetcher loads community items from the database.
type Fetcher struct {
	db      database.DBAdapter
	metrics *utils.MetricsCollector
	logger  *slog.Logger
}

func NewFetcher(db database.DBAdapter, metrics *utils.MetricsCollector, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		db:      db,
		metrics: metrics,
		logger:  logger.With("component", "fetcher"),
	}
}

// Fetch loads every post and record share of a community as one
// chronological list. A failure of either load fails the whole fetch with
// an ErrLoadFailed AppError; an empty community returns an empty list.
func (f *Fetcher) Fetch(ctx context.Context, communityID int64) ([]Item, error) {
	startTime := time.Now()

	var (
		posts  []*models.Post
		shares []*models.RecordShare
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = f.db.GetCommunityPosts(gctx, communityID)
		if err != nil {
			return fmt.Errorf("posts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		shares, err = f.db.GetCommunityRecordShares(gctx, communityID)
		if err != nil {
			return fmt.Errorf("record shares: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		f.metrics.IncrementErrors()
		f.logger.Error("community load failed", "community_id", communityID, "error", err)
		return nil, utils.NewLoadFailedError(communityID, err)
	}

	items := Merge(posts, shares)
	f.metrics.AddOperationLatency("fetch_community", time.Since(startTime))
	f.logger.Debug("community loaded", "community_id", communityID, "posts", len(posts), "record_shares", len(shares))
	return items, nil
}

// FetchOne loads the single row an insert event announces.
func (f *Fetcher) FetchOne(ctx context.Context, evt database.InsertEvent) (Item, error) {
	switch evt.Table {
	case database.PostsTable:
		post, err := f.db.GetPost(ctx, evt.ID)
		if err != nil {
			return nil, err
		}
		return PostItem{Post: post}, nil
	case database.RecordSharesTable:
		share, err := f.db.GetRecordShare(ctx, evt.ID)
		if err != nil {
			return nil, err
		}
		return RecordItem{Share: share}, nil
	default:
		return nil, utils.NewAppError(utils.ErrInvalidInput, fmt.Sprintf("unknown table %q", evt.Table), nil)
	}
}
