package domain

import (
	"time"
)

// CacheSlot is one persisted key-value slot.
// Value carries the timestamp and the encoded payload together, so a row is
// either fully written or absent.
type CacheSlot struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (CacheSlot) TableName() string {
	return "cache_slots"
}

// CacheRecord is the decoded view of a slot.
type CacheRecord struct {
	Exchange  Exchange
	Category  Category
	Timestamp time.Time
	Payload   string
}
