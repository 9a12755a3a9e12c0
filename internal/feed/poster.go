package feed

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"agri-compath/internal/database"
	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxTitleLength    = 100
	maxContentLength  = 2000
	maxSanitizeRounds = 4
	recordDateLayout  = "2006-01-02"
)

// NewPost is a topic when ParentID is nil and a reply otherwise.
type NewPost struct {
	Title    string
	Content  string
	ParentID *int64
	IsAlert  bool
}

type NewRecord struct {
	Date   string
	Type   models.RecordType
	Crop   string
	Detail string
	Amount string
	Memo   string
}

// Poster validates and stores what community members write. Stored rows
// reach open views through insert notifications, not through Poster.
type Poster struct {
	db        database.DBAdapter
	sanitizer *bluemonday.Policy
	metrics   *utils.MetricsCollector
	logger    *slog.Logger
}

func NewPoster(db database.DBAdapter, metrics *utils.MetricsCollector, logger *slog.Logger) *Poster {
	return &Poster{
		db:        db,
		sanitizer: bluemonday.StrictPolicy(),
		metrics:   metrics,
		logger:    logger.With("component", "poster"),
	}
}

// CreatePost stores a topic or a reply written by the session user.
func (p *Poster) CreatePost(ctx context.Context, session models.Session, communityID int64, req NewPost) (*models.Post, error) {
	startTime := time.Now()

	if session.UserID == uuid.Nil {
		return nil, utils.NewUnauthorizedError("no user in session")
	}
	if req.IsAlert && !session.IsAdmin() {
		return nil, utils.NewAppError(utils.ErrForbidden, "only admins can post alerts", nil)
	}
	if _, err := p.db.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	content := p.sanitize(req.Content)
	if content == "" {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "content is required", nil)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "content is too long", nil)
	}

	post := &models.Post{
		CommunityID: communityID,
		UserID:      session.UserID,
		Content:     content,
		ParentID:    req.ParentID,
		IsAlert:     req.IsAlert,
	}

	title := p.sanitize(req.Title)
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "title is too long", nil)
	}

	if req.ParentID != nil {
		if title != "" {
			return nil, utils.NewAppError(utils.ErrInvalidInput, "replies cannot have a title", nil)
		}
		if err := p.checkParent(ctx, communityID, *req.ParentID); err != nil {
			return nil, err
		}
	} else if title != "" {
		post.Title = &title
	}

	if err := p.db.SavePost(ctx, post); err != nil {
		p.metrics.IncrementErrors()
		p.logger.Error("failed to save post", "community_id", communityID, "user_id", session.UserID, "error", err)
		return nil, err
	}

	p.metrics.AddOperationLatency("create_post", time.Since(startTime))
	p.logger.Info("post created", "post_id", post.ID, "community_id", communityID, "reply", post.IsReply(), "alert", post.IsAlert)
	return post, nil
}

// CreateCommunity opens a new community. Only admins may do so.
func (p *Poster) CreateCommunity(ctx context.Context, session models.Session, name string) (*models.Community, error) {
	if !session.IsAdmin() {
		return nil, utils.NewAppError(utils.ErrForbidden, "only admins can create communities", nil)
	}
	name = p.sanitize(name)
	if name == "" {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "community name is required", nil)
	}
	if utf8.RuneCountInString(name) > maxTitleLength {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "community name is too long", nil)
	}

	community := &models.Community{Name: name}
	if err := p.db.CreateCommunity(ctx, community); err != nil {
		p.metrics.IncrementErrors()
		return nil, err
	}
	p.logger.Info("community created", "community_id", community.ID, "name", name)
	return community, nil
}

// Broadcast posts an alert topic on behalf of an admin.
func (p *Poster) Broadcast(ctx context.Context, session models.Session, communityID int64, title, content string) (*models.Post, error) {
	if !session.IsAdmin() {
		return nil, utils.NewAppError(utils.ErrForbidden, "only admins can broadcast", nil)
	}
	return p.CreatePost(ctx, session, communityID, NewPost{Title: title, Content: content, IsAlert: true})
}

// ShareRecord surfaces one of the session user's records into a community.
func (p *Poster) ShareRecord(ctx context.Context, session models.Session, communityID, recordID int64) (*models.RecordShare, error) {
	if session.UserID == uuid.Nil {
		return nil, utils.NewUnauthorizedError("no user in session")
	}
	if _, err := p.db.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	record, err := p.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.UserID != session.UserID {
		return nil, utils.NewAppError(utils.ErrForbidden, "records can only be shared by their owner", nil)
	}

	share := &models.RecordShare{CommunityID: communityID, RecordID: recordID}
	if err := p.db.SaveRecordShare(ctx, share); err != nil {
		p.metrics.IncrementErrors()
		p.logger.Error("failed to share record", "record_id", recordID, "community_id", communityID, "error", err)
		return nil, err
	}
	share.Record = *record

	p.logger.Info("record shared", "share_id", share.ID, "record_id", recordID, "community_id", communityID)
	return share, nil
}

// CreateRecord logs a farm activity for the session user. The date may be
// given in any common layout and is stored as YYYY-MM-DD.
func (p *Poster) CreateRecord(ctx context.Context, session models.Session, req NewRecord) (*models.Record, error) {
	if session.UserID == uuid.Nil {
		return nil, utils.NewUnauthorizedError("no user in session")
	}
	if !req.Type.Valid() {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "unknown record type: "+string(req.Type), nil)
	}

	date, err := NormalizeRecordDate(req.Date)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		UserID: session.UserID,
		Date:   date,
		Type:   req.Type,
		Crop:   p.sanitize(req.Crop),
		Detail: p.sanitize(req.Detail),
		Amount: p.sanitize(req.Amount),
		Memo:   p.sanitize(req.Memo),
	}
	if err := p.db.SaveRecord(ctx, record); err != nil {
		p.metrics.IncrementErrors()
		return nil, err
	}
	return record, nil
}

// NormalizeRecordDate parses a user-entered date and formats it as YYYY-MM-DD.
func NormalizeRecordDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", utils.NewAppError(utils.ErrInvalidInput, "date is required", nil)
	}
	parsed, err := dateparse.ParseAny(value)
	if err != nil {
		return "", utils.NewAppError(utils.ErrInvalidInput, "unrecognized date: "+value, err)
	}
	return parsed.Format(recordDateLayout), nil
}

func (p *Poster) checkParent(ctx context.Context, communityID, parentID int64) error {
	parent, err := p.db.GetPost(ctx, parentID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return utils.NewAppError(utils.ErrParentNotFound, "parent post not found", nil)
		}
		return err
	}
	if parent.CommunityID != communityID {
		return utils.NewAppError(utils.ErrParentNotFound, "parent post belongs to another community", nil)
	}
	if parent.IsReply() {
		return utils.NewAppError(utils.ErrInvalidInput, "replies must answer a topic", nil)
	}
	return nil
}

// sanitize strips markup and stores plain text. Entity-encoded markup is
// decoded and stripped again until the text no longer changes.
func (p *Poster) sanitize(value string) string {
	for i := 0; i < maxSanitizeRounds; i++ {
		plain := html.UnescapeString(p.sanitizer.Sanitize(value))
		if plain == value {
			return strings.TrimSpace(plain)
		}
		value = plain
	}
	return strings.TrimSpace(p.sanitizer.Sanitize(value))
}
