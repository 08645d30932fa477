package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SenderType identifies who wrote a message
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderSupport  SenderType = "support"
	SenderInternal SenderType = "internal"
)

// Message is one entry in a ticket's thread. Messages are append-only and
// ordered by CreatedAt.
type Message struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	TicketID   string     `gorm:"not null;size:64;index" json:"ticket_id"`
	SenderType SenderType `gorm:"not null;size:16" json:"sender_type"`
	Content    string     `gorm:"not null" json:"content"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a UUID when none is set
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
