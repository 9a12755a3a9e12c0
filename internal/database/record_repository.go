package database

import (
	"context"
	"database/sql"

	"agri-compath/internal/models"
	"agri-compath/internal/utils"
)

// Shares are read joined with their record; the dotted aliases let sqlx fill
// the nested Record struct.
const recordShareSelect = `
	SELECT
		rs.id, rs.community_id, rs.record_id, rs.created_at,
		r.id AS "record.id", r.user_id AS "record.user_id", r.date AS "record.date",
		r.type AS "record.type", r.crop AS "record.crop", r.detail AS "record.detail",
		r.amount AS "record.amount", r.memo AS "record.memo", r.created_at AS "record.created_at"
	FROM record_shares rs
	JOIN records r ON rs.record_id = r.id
`

func (p *PostgresDB) SaveRecord(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO records (user_id, date, type, crop, detail, amount, memo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := p.DB.QueryRowxContext(ctx, query,
		record.UserID, record.Date, record.Type, record.Crop, record.Detail, record.Amount, record.Memo,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return writeError(err, "failed to save record")
	}
	return nil
}

func (p *PostgresDB) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	var record models.Record
	query := `SELECT id, user_id, date, type, crop, detail, amount, memo, created_at FROM records WHERE id = $1`
	if err := p.DB.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrRecordNotFound, "record not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query record by id", err)
	}
	return &record, nil
}

// SaveRecordShare inserts a share. The joined Record is left as given.
func (p *PostgresDB) SaveRecordShare(ctx context.Context, share *models.RecordShare) error {
	err := p.DB.QueryRowxContext(ctx,
		`INSERT INTO record_shares (community_id, record_id) VALUES ($1, $2) RETURNING id, created_at`,
		share.CommunityID, share.RecordID,
	).Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		return writeError(err, "failed to share record")
	}

	p.logger.Debug("shared record", "share_id", share.ID, "record_id", share.RecordID, "community_id", share.CommunityID)
	return nil
}

func (p *PostgresDB) GetRecordShare(ctx context.Context, id int64) (*models.RecordShare, error) {
	var share models.RecordShare
	if err := p.DB.GetContext(ctx, &share, recordShareSelect+` WHERE rs.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "record share not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query record share by id", err)
	}
	return &share, nil
}

// GetCommunityRecordShares returns every share of a community with its record, oldest first.
func (p *PostgresDB) GetCommunityRecordShares(ctx context.Context, communityID int64) ([]*models.RecordShare, error) {
	query := recordShareSelect + ` WHERE rs.community_id = $1 ORDER BY rs.created_at ASC, rs.id ASC`

	var shares []*models.RecordShare
	if err := p.DB.SelectContext(ctx, &shares, query, communityID); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query community record shares", err)
	}
	return shares, nil
}
