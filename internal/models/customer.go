package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a known sender. Customers are created out-of-band; the
// ingestion pipeline only looks them up by email.
type Customer struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      *string   `gorm:"size:255" json:"name,omitempty"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Customer
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate assigns a UUID when none is set
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
