package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// TicketFilter narrows ticket listings
type TicketFilter struct {
	Status     models.TicketStatus
	CustomerID string
	UnreadOnly bool
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, filter TicketFilter, limit, offset int) ([]models.Ticket, int64, error)
	UpdateField(ctx context.Context, id string, field models.TicketField, value string) error
	MarkRead(ctx context.Context, id string) error
}

// ticketRepository implements TicketRepository using GORM
type ticketRepository struct {
	db *gorm.DB
}

// NewTicketRepository creates a new TicketRepository instance
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

// Create inserts a ticket; the generated ID is written back into ticket.
func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	result := r.db.WithContext(ctx).Create(ticket)
	if result.Error != nil {
		if isForeignKeyError(result.Error) {
			return fmt.Errorf("ticket references missing customer: %w", ErrInvalidInput)
		}
		return fmt.Errorf("failed to create ticket: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a ticket by its ID, with its customer when one is linked
func (r *ticketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	result := r.db.WithContext(ctx).Preload("Customer").Where("id = ?", id).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ticket by ID: %w", result.Error)
	}
	return &ticket, nil
}

// List retrieves tickets newest first with pagination
func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, limit, offset int) ([]models.Ticket, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Ticket{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.UnreadOnly {
		query = query.Where("has_unread_customer_message = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	var tickets []models.Ticket
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}

	return tickets, total, nil
}

// UpdateField sets one of the staff-editable columns. An empty value clears
// the optional columns.
func (r *ticketRepository) UpdateField(ctx context.Context, id string, field models.TicketField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("field '%s' is not editable: %w", field, ErrInvalidInput)
	}
	var column interface{} = value
	if value == "" && field != models.FieldStatus {
		column = nil
	}
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", id).Update(string(field), column)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket %s: %w", field, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead clears the unread-customer-message flag
func (r *ticketRepository) MarkRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", id).Update("has_unread_customer_message", false)
	if result.Error != nil {
		return fmt.Errorf("failed to mark ticket as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
