package repository

import (
	"context"
	"fmt"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// TimeEntryRepository defines the interface for booked work time
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *models.TimeEntry) error
	TotalSeconds(ctx context.Context, ticketID string) (int64, error)
}

type timeEntryRepository struct {
	db *gorm.DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository instance
func NewTimeEntryRepository(db *gorm.DB) TimeEntryRepository {
	return &timeEntryRepository{db: db}
}

func (r *timeEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", entry.TicketID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up ticket: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("ticket '%s': %w", entry.TicketID, ErrUnknownTicket)
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

func (r *timeEntryRepository) TotalSeconds(ctx context.Context, ticketID string) (int64, error) {
	var total int64
	result := r.db.WithContext(ctx).
		Model(&models.TimeEntry{}).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Where("ticket_id = ?", ticketID).
		Scan(&total)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sum time entries: %w", result.Error)
	}
	return total, nil
}
