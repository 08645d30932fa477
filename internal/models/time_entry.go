package models

import (
	"time"
)

// TimeEntry records work time booked against a ticket
type TimeEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TicketID        string    `gorm:"not null;size:64;index" json:"ticket_id"`
	DurationSeconds int       `gorm:"not null" json:"duration_seconds"`
	UserName        string    `gorm:"size:255" json:"user_name"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for TimeEntry
func (TimeEntry) TableName() string {
	return "ticket_time_entries"
}
