package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated in-memory SQLite database. The pool is pinned
// to one connection so every query sees the same in-memory schema.
func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Customer{},
		&models.Ticket{},
		&models.Message{},
		&models.TicketAttachment{},
		&models.TimeEntry{},
	)
	require.NoError(t, err)

	return db
}

func closeTestDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}

func cleanTestDB(db *gorm.DB) {
	db.Exec("DELETE FROM ticket_time_entries")
	db.Exec("DELETE FROM ticket_attachments")
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM tickets")
	db.Exec("DELETE FROM customers")
}
