package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordType is the kind of farm activity a record logs.
type RecordType string

const (
	RecordPesticide  RecordType = "pesticide"
	RecordFertilizer RecordType = "fertilizer"
	RecordWork       RecordType = "work"
	RecordHarvest    RecordType = "harvest"
	RecordAccounting RecordType = "accounting"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case RecordPesticide, RecordFertilizer, RecordWork, RecordHarvest, RecordAccounting:
		return true
	}
	return false
}

// Record is a farm activity logged by its owner.
type Record struct {
	ID        int64      `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Date      string     `json:"date" db:"date"`
	Type      RecordType `json:"type" db:"type"`
	Crop      string     `json:"crop" db:"crop"`
	Detail    string     `json:"detail" db:"detail"`
	Amount    string     `json:"amount" db:"amount"`
	Memo      string     `json:"memo" db:"memo"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// RecordShare surfaces a Record into a community feed. Record is populated
// from a join when the share is read.
type RecordShare struct {
	ID          int64     `json:"id" db:"id"`
	CommunityID int64     `json:"communityId" db:"community_id"`
	RecordID    int64     `json:"recordId" db:"record_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	Record      Record    `json:"record" db:"record"`
}
