package database

import (
	"context"

	"agri-compath/internal/models"
)

// DBAdapter defines the storage operations the community feed needs.
// PostgresDB is the production implementation and MemoryDB serves local
// runs and tests.
type DBAdapter interface {
	// Connection
	Close(ctx context.Context) error

	// Community methods
	CreateCommunity(ctx context.Context, community *models.Community) error
	GetCommunity(ctx context.Context, id int64) (*models.Community, error)

	// Post methods
	SavePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	GetCommunityPosts(ctx context.Context, communityID int64) ([]*models.Post, error)

	// Record methods
	SaveRecord(ctx context.Context, record *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	SaveRecordShare(ctx context.Context, share *models.RecordShare) error
	GetRecordShare(ctx context.Context, id int64) (*models.RecordShare, error)
	GetCommunityRecordShares(ctx context.Context, communityID int64) ([]*models.RecordShare, error)
}

// Table names a collection whose inserts can be subscribed to.
type Table string

const (
	PostsTable        Table = "posts"
	RecordSharesTable Table = "record_shares"
)

// InsertEvent announces a new row. Only the identifiers travel with the
// event; subscribers fetch the row themselves.
type InsertEvent struct {
	Table       Table `json:"-"`
	ID          int64 `json:"id"`
	CommunityID int64 `json:"community_id"`
}

// InsertSource delivers insert events for one table, filtered to one community.
type InsertSource interface {
	SubscribeInserts(table Table, communityID int64, handler func(InsertEvent)) Subscription
}

// Subscription is released with Unsubscribe. Releasing twice is a no-op.
type Subscription interface {
	Unsubscribe()
}
