package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"
)

// MemoryDB keeps everything in process. It implements both DBAdapter and
// InsertSource, announcing inserts the way the PostgreSQL triggers do.
type MemoryDB struct {
	mu           sync.RWMutex
	communities  map[int64]*models.Community
	posts        map[int64]*models.Post
	records      map[int64]*models.Record
	recordShares map[int64]*models.RecordShare
	lastID       int64
	failures     map[string]error

	subs *subscriberSet
	now  func() time.Time
}

var (
	_ DBAdapter    = (*MemoryDB)(nil)
	_ InsertSource = (*MemoryDB)(nil)
	_ DBAdapter    = (*PostgresDB)(nil)
	_ InsertSource = (*Notifier)(nil)
)

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		communities:  make(map[int64]*models.Community),
		posts:        make(map[int64]*models.Post),
		records:      make(map[int64]*models.Record),
		recordShares: make(map[int64]*models.RecordShare),
		failures:     make(map[string]error),
		subs:         newSubscriberSet(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes the named operation (a DBAdapter method name) return err
// until it is cleared with a nil error.
func (m *MemoryDB) FailOn(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, operation)
		return
	}
	m.failures[operation] = err
}

// SubscriberCount reports how many insert subscriptions are open.
func (m *MemoryDB) SubscriberCount() int {
	return m.subs.count()
}

// SubscribeInserts implements InsertSource.
func (m *MemoryDB) SubscribeInserts(table Table, communityID int64, handler func(InsertEvent)) Subscription {
	return m.subs.add(table, communityID, handler)
}

func (m *MemoryDB) Close(ctx context.Context) error {
	return nil
}

func (m *MemoryDB) CreateCommunity(ctx context.Context, community *models.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateCommunity"); err != nil {
		return err
	}

	m.lastID++
	community.ID = m.lastID
	community.CreatedAt = m.stamp(community.CreatedAt)
	stored := *community
	m.communities[community.ID] = &stored
	return nil
}

func (m *MemoryDB) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetCommunity"); err != nil {
		return nil, err
	}

	community, ok := m.communities[id]
	if !ok {
		return nil, utils.NewCommunityNotFoundError(id)
	}
	c := *community
	return &c, nil
}

// SavePost keeps a non-zero CreatedAt so callers can control ordering.
func (m *MemoryDB) SavePost(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	if err := m.failure("SavePost"); err != nil {
		m.mu.Unlock()
		return err
	}
	if _, ok := m.communities[post.CommunityID]; !ok {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrInvalidInput, "failed to save post: referenced row does not exist", nil)
	}
	if post.ParentID != nil && post.Title != nil {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrInvalidInput, "failed to save post: posts_reply_without_title", nil)
	}

	m.lastID++
	post.ID = m.lastID
	post.CreatedAt = m.stamp(post.CreatedAt)
	stored := *post
	m.posts[post.ID] = &stored
	m.mu.Unlock()

	m.subs.dispatch(InsertEvent{Table: PostsTable, ID: post.ID, CommunityID: post.CommunityID})
	return nil
}

func (m *MemoryDB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetPost"); err != nil {
		return nil, err
	}

	post, ok := m.posts[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "post not found", nil)
	}
	p := *post
	return &p, nil
}

func (m *MemoryDB) GetCommunityPosts(ctx context.Context, communityID int64) ([]*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetCommunityPosts"); err != nil {
		return nil, err
	}

	posts := make([]*models.Post, 0)
	for _, post := range m.posts {
		if post.CommunityID == communityID {
			p := *post
			posts = append(posts, &p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
	return posts, nil
}

func (m *MemoryDB) SaveRecord(ctx context.Context, record *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveRecord"); err != nil {
		return err
	}

	m.lastID++
	record.ID = m.lastID
	record.CreatedAt = m.stamp(record.CreatedAt)
	stored := *record
	m.records[record.ID] = &stored
	return nil
}

func (m *MemoryDB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetRecord"); err != nil {
		return nil, err
	}

	record, ok := m.records[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrRecordNotFound, "record not found", nil)
	}
	r := *record
	return &r, nil
}

func (m *MemoryDB) SaveRecordShare(ctx context.Context, share *models.RecordShare) error {
	m.mu.Lock()
	if err := m.failure("SaveRecordShare"); err != nil {
		m.mu.Unlock()
		return err
	}
	_, communityOK := m.communities[share.CommunityID]
	_, recordOK := m.records[share.RecordID]
	if !communityOK || !recordOK {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrInvalidInput, "failed to share record: referenced row does not exist", nil)
	}

	m.lastID++
	share.ID = m.lastID
	share.CreatedAt = m.stamp(share.CreatedAt)
	stored := *share
	m.recordShares[share.ID] = &stored
	m.mu.Unlock()

	m.subs.dispatch(InsertEvent{Table: RecordSharesTable, ID: share.ID, CommunityID: share.CommunityID})
	return nil
}

func (m *MemoryDB) GetRecordShare(ctx context.Context, id int64) (*models.RecordShare, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetRecordShare"); err != nil {
		return nil, err
	}

	share, ok := m.recordShares[id]
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, "record share not found", nil)
	}
	return m.joined(share), nil
}

func (m *MemoryDB) GetCommunityRecordShares(ctx context.Context, communityID int64) ([]*models.RecordShare, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetCommunityRecordShares"); err != nil {
		return nil, err
	}

	shares := make([]*models.RecordShare, 0)
	for _, share := range m.recordShares {
		if share.CommunityID == communityID {
			shares = append(shares, m.joined(share))
		}
	}
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].CreatedAt.Equal(shares[j].CreatedAt) {
			return shares[i].CreatedAt.Before(shares[j].CreatedAt)
		}
		return shares[i].ID < shares[j].ID
	})
	return shares, nil
}

// joined copies a share and attaches its record. Callers hold m.mu.
func (m *MemoryDB) joined(share *models.RecordShare) *models.RecordShare {
	s := *share
	if record, ok := m.records[share.RecordID]; ok {
		s.Record = *record
	}
	return &s
}

func (m *MemoryDB) failure(operation string) error {
	if err, ok := m.failures[operation]; ok {
		return utils.NewAppError(utils.ErrDatabase, "failed to run "+operation, err)
	}
	return nil
}

func (m *MemoryDB) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return m.now()
	}
	return t
}
