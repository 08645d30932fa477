package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketStatus is the workflow state of a ticket
type TicketStatus string

const (
	StatusOpen       TicketStatus = "offen"
	StatusInProgress TicketStatus = "in_bearbeitung"
	StatusClosed     TicketStatus = "geschlossen"
)

// Valid reports whether s is one of the known statuses
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// TicketCategories lists the categories a ticket can be classified under.
var TicketCategories = []string{
	"website",
	"hosting",
	"wartung",
	"fehler",
	"verwaltung_intern",
	"verwaltung_extern",
	"spam",
}

// IsTicketCategory reports whether c is a known category
func IsTicketCategory(c string) bool {
	for _, known := range TicketCategories {
		if known == c {
			return true
		}
	}
	return false
}

// Ticket is the unit of support work. Its ID is embedded in outgoing
// subjects and never changes after creation.
type Ticket struct {
	ID                       string       `gorm:"primaryKey;size:64" json:"id"`
	Title                    string       `gorm:"not null" json:"title"`
	Status                   TicketStatus `gorm:"not null;size:32;index" json:"status"`
	Priority                 *string      `gorm:"size:32" json:"priority,omitempty"`
	Category                 *string      `gorm:"size:64" json:"category,omitempty"`
	Assignee                 *string      `gorm:"size:255" json:"assignee,omitempty"`
	CustomerID               *string      `gorm:"size:64;index" json:"customer_id"`
	HasUnreadCustomerMessage bool         `gorm:"default:false" json:"has_unread_customer_message"`
	CreatedAt                time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL" json:"-"`
	Messages []Message `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// BeforeCreate assigns a UUID when none is set
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TicketField names the ticket columns staff may edit directly
type TicketField string

const (
	FieldStatus   TicketField = "status"
	FieldPriority TicketField = "priority"
	FieldAssignee TicketField = "assignee"
	FieldCategory TicketField = "category"
)

// Valid reports whether f is an editable field
func (f TicketField) Valid() bool {
	switch f {
	case FieldStatus, FieldPriority, FieldAssignee, FieldCategory:
		return true
	}
	return false
}
