package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// AttachmentRepository defines the interface for attachment metadata access
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.TicketAttachment) error
	GetByID(ctx context.Context, id string) (*models.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]models.TicketAttachment, error)
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Create creates a new attachment metadata record
func (r *attachmentRepository) Create(ctx context.Context, attachment *models.TicketAttachment) error {
	result := r.db.WithContext(ctx).Create(attachment)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("attachment at '%s' already recorded: %w", attachment.StoragePath, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create attachment: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*models.TicketAttachment, error) {
	var attachment models.TicketAttachment
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// ListByTicket retrieves all attachments of a ticket, oldest first
func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.TicketAttachment, error) {
	var attachments []models.TicketAttachment
	result := r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at ASC").Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}
