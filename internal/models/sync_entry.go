package models

import "time"

// SyncType selects the delivery handler for a queued write.
type SyncType string

const (
	SyncTypeQuiz       SyncType = "quiz"
	SyncTypeAssignment SyncType = "assignment"
	SyncTypeForum      SyncType = "forum"
)

// SyncEntry is one pending outbound write awaiting delivery.
type SyncEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SyncType    SyncType  `gorm:"size:64;index;not null" json:"syncType"`
	Payload     JSON      `gorm:"type:text;not null" json:"payload"`
	EnqueuedAt  time.Time `gorm:"index;not null" json:"timestamp"`
	Attempts    int       `gorm:"default:0;not null" json:"attempts"`
	DeliveryKey string    `gorm:"size:64;uniqueIndex" json:"deliveryKey"`
	LastError   string    `gorm:"type:text" json:"lastError,omitempty"`
}

// TableName specifies the table name for GORM.
func (SyncEntry) TableName() string {
	return "sync_queue"
}
