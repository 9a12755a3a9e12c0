package feed

import (
	"fmt"
	"time"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"

	"github.com/google/uuid"
)

// PreviewReplies is how many of the newest replies the topic list shows inline.
const PreviewReplies = 2

// LoadState tells a client whether an empty view means an empty community.
type LoadState string

const (
	StateLoading    LoadState = "loading"
	StateLoaded     LoadState = "loaded"
	StateLoadFailed LoadState = "load_failed"
)

// ItemView is the JSON form of an item. Post fields are set for posts and
// Record for record shares.
type ItemView struct {
	Type      ItemKind  `json:"type"`
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID   uuid.UUID `json:"userId"`
	Title    *string   `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	ParentID *int64    `json:"parentId,omitempty"`
	IsAlert  bool      `json:"isAlert,omitempty"`

	Record *models.Record `json:"record,omitempty"`
}

type TopicView struct {
	Item           ItemView   `json:"item"`
	IsAlert        bool       `json:"isAlert"`
	IsOrphan       bool       `json:"isOrphan"`
	LastActivity   time.Time  `json:"lastActivity"`
	ReplyCount     int        `json:"replyCount"`
	Replies        []ItemView `json:"replies"`
	HasMoreReplies bool       `json:"hasMoreReplies"`
}

type TopicListView struct {
	CommunityID int64       `json:"communityId"`
	Status      LoadState   `json:"status"`
	Topics      []TopicView `json:"topics"`
}

type ThreadView struct {
	CommunityID int64     `json:"communityId"`
	Status      LoadState `json:"status"`
	Topic       TopicView `json:"topic"`
}

// RenderTopicList shows every topic with its newest replies as a preview.
func RenderTopicList(communityID int64, state LoadState, grouping Grouping) *TopicListView {
	topics := make([]TopicView, 0, len(grouping.Topics))
	for _, topic := range grouping.Topics {
		topics = append(topics, renderTopic(topic, PreviewReplies))
	}
	return &TopicListView{CommunityID: communityID, Status: state, Topics: topics}
}

// RenderThread shows one topic with all of its replies.
func RenderThread(communityID int64, state LoadState, grouping Grouping, key ItemKey) (*ThreadView, error) {
	topic, ok := grouping.Find(key)
	if !ok {
		return nil, utils.NewAppError(utils.ErrNotFound, fmt.Sprintf("topic %s not found", key), nil)
	}
	return &ThreadView{CommunityID: communityID, Status: state, Topic: renderTopic(topic, -1)}, nil
}

// renderTopic keeps the last limit replies, or all of them when limit is negative.
func renderTopic(topic Topic, limit int) TopicView {
	replies := topic.Replies
	if limit >= 0 && len(replies) > limit {
		replies = replies[len(replies)-limit:]
	}

	views := make([]ItemView, 0, len(replies))
	for _, reply := range replies {
		views = append(views, renderPost(reply))
	}

	item := renderItem(topic.Item)
	if topic.IsOrphan {
		item.Content = OrphanMarker + item.Content
	}

	return TopicView{
		Item:           item,
		IsAlert:        topic.IsAlert(),
		IsOrphan:       topic.IsOrphan,
		LastActivity:   topic.LastActivity(),
		ReplyCount:     len(topic.Replies),
		Replies:        views,
		HasMoreReplies: len(views) < len(topic.Replies),
	}
}

func renderItem(item Item) ItemView {
	switch it := item.(type) {
	case PostItem:
		return renderPost(it.Post)
	case RecordItem:
		record := it.Share.Record
		return ItemView{
			Type:      KindRecord,
			ID:        it.Share.ID,
			CreatedAt: it.Share.CreatedAt,
			UserID:    record.UserID,
			Record:    &record,
		}
	default:
		panic(fmt.Sprintf("feed: unknown item type %T", item))
	}
}

func renderPost(post *models.Post) ItemView {
	return ItemView{
		Type:      KindPost,
		ID:        post.ID,
		CreatedAt: post.CreatedAt,
		UserID:    post.UserID,
		Title:     post.Title,
		Content:   post.Content,
		ParentID:  post.ParentID,
		IsAlert:   post.IsAlert,
	}
}
