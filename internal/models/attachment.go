package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketAttachment is the metadata row for a file held in the object store.
// A row is only written after the object upload succeeded.
type TicketAttachment struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	TicketID      string    `gorm:"not null;size:64;index" json:"ticket_id"`
	FileName      string    `gorm:"size:255" json:"file_name"`
	FileType      string    `gorm:"size:255" json:"file_type"`
	FileSize      int64     `json:"file_size"`
	StorageBucket string    `gorm:"not null;size:100" json:"storage_bucket"`
	StoragePath   string    `gorm:"uniqueIndex;not null;size:1000" json:"storage_path"`
	UploadedBy    string    `gorm:"size:255" json:"uploaded_by"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Ticket Ticket `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for TicketAttachment
func (TicketAttachment) TableName() string {
	return "ticket_attachments"
}

// BeforeCreate assigns a UUID when none is set
func (a *TicketAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// TicketAttachmentView adds the public download URL for API responses
type TicketAttachmentView struct {
	TicketAttachment
	PublicURL string `json:"public_url"`
}
