package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is a discussion entry in a community. A post with ParentID set is a
// reply and carries no title; a post without a parent opens a topic.
type Post struct {
	ID          int64     `json:"id" db:"id"`
	CommunityID int64     `json:"communityId" db:"community_id"`
	UserID      uuid.UUID `json:"userId" db:"user_id"`
	Content     string    `json:"content" db:"content"`
	Title       *string   `json:"title,omitempty" db:"title"`
	ParentID    *int64    `json:"parentId,omitempty" db:"parent_id"`
	IsAlert     bool      `json:"isAlert" db:"is_alert"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// IsReply reports whether the post answers another post.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}
