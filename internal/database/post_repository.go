package database

import (
	"context"
	"database/sql"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"
)

const postColumns = `id, community_id, user_id, content, title, parent_id, is_alert, created_at`

// SavePost inserts a post. The id and created_at are assigned by the database.
func (p *PostgresDB) SavePost(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (community_id, user_id, content, title, parent_id, is_alert)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := p.DB.QueryRowxContext(ctx, query,
		post.CommunityID, post.UserID, post.Content, post.Title, post.ParentID, post.IsAlert,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return writeError(err, "failed to save post")
	}

	p.logger.Debug("saved post", "post_id", post.ID, "community_id", post.CommunityID, "parent_id", post.ParentID)
	return nil
}

func (p *PostgresDB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	err := p.DB.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "post not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query post by id", err)
	}
	return &post, nil
}

// GetCommunityPosts returns every post of a community, oldest first.
func (p *PostgresDB) GetCommunityPosts(ctx context.Context, communityID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE community_id = $1 ORDER BY created_at ASC, id ASC`

	var posts []*models.Post
	if err := p.DB.SelectContext(ctx, &posts, query, communityID); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query community posts", err)
	}
	return posts, nil
}
