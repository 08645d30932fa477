package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByTicket(ctx context.Context, ticketID string) ([]models.Message, error)
	CountByTicket(ctx context.Context, ticketID string) (int64, error)
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append adds a message to a ticket's thread. It returns ErrUnknownTicket when
// the ticket does not exist, whether or not the database enforces the foreign
// key. Customer messages also raise the ticket's unread flag in the same
// transaction.
func (r *messageRepository) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Ticket{}).Where("id = ?", message.TicketID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up ticket: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("ticket '%s': %w", message.TicketID, ErrUnknownTicket)
		}

		if err := tx.Create(message).Error; err != nil {
			if isForeignKeyError(err) {
				return fmt.Errorf("ticket '%s': %w", message.TicketID, ErrUnknownTicket)
			}
			return fmt.Errorf("failed to create message: %w", err)
		}

		if message.SenderType == models.SenderCustomer {
			if err := tx.Model(&models.Ticket{}).
				Where("id = ?", message.TicketID).
				Update("has_unread_customer_message", true).Error; err != nil {
				return fmt.Errorf("failed to flag ticket unread: %w", err)
			}
		}

		return nil
	})
}

// GetByID retrieves a message by its ID
func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// ListByTicket returns the thread of a ticket in chronological order
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}
	return messages, nil
}

// CountByTicket counts the messages of a ticket
func (r *messageRepository) CountByTicket(ctx context.Context, ticketID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("ticket_id = ?", ticketID).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count messages: %w", result.Error)
	}
	return count, nil
}
