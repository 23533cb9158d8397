package models

import (
	"time"
)

const (
	MessageText  = "text"
	MessageImage = "image"
)

// ChatThread is the single conversation between one buyer and one farmer.
type ChatThread struct {
	ID        uint      `gorm:"primaryKey;column:thread_id" json:"thread_id"`
	BuyerID   uint      `gorm:"not null;uniqueIndex:idx_chat_thread_pair" json:"buyer_id"`
	FarmerID  uint      `gorm:"not null;uniqueIndex:idx_chat_thread_pair;index" json:"farmer_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (ChatThread) TableName() string {
	return "chat_threads"
}

// HasMember reports whether userID is one of the two participants.
func (t *ChatThread) HasMember(userID uint) bool {
	return t.BuyerID == userID || t.FarmerID == userID
}

type ChatMessage struct {
	ID          uint      `gorm:"primaryKey;column:message_id" json:"message_id"`
	ThreadID    uint      `gorm:"not null;index" json:"thread_id"`
	SenderID    uint      `gorm:"not null" json:"sender_id"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	MessageType string    `gorm:"size:10;not null;default:'text'" json:"message_type"` // text, image
	ImageURL    *string   `gorm:"size:500" json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName overrides the table name
func (ChatMessage) TableName() string {
	return "chat_messages"
}
