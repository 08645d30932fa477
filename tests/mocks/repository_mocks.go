package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
)

// MockCustomerRepository implements repository.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

// Create creates a new customer
func (m *MockCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

// GetByID retrieves a customer by its ID
func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

// FindIDByEmail looks up a customer id by exact email
func (m *MockCustomerRepository) FindIDByEmail(ctx context.Context, email string) (*string, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

// MockTicketRepository implements repository.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

// Create creates a new ticket
func (m *MockTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

// GetByID retrieves a ticket by its ID
func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

// List retrieves tickets with pagination
func (m *MockTicketRepository) List(ctx context.Context, filter repository.TicketFilter, limit, offset int) ([]models.Ticket, int64, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Ticket), args.Get(1).(int64), args.Error(2)
}

// UpdateField sets one editable ticket column
func (m *MockTicketRepository) UpdateField(ctx context.Context, id string, field models.TicketField, value string) error {
	args := m.Called(ctx, id, field, value)
	return args.Error(0)
}

// MarkRead clears the unread flag
func (m *MockTicketRepository) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageRepository implements repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Append adds a message to a ticket thread
func (m *MockMessageRepository) Append(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// GetByID retrieves a message by its ID
func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// ListByTicket returns a ticket thread
func (m *MockMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.Message, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// CountByTicket counts messages of a ticket
func (m *MockMessageRepository) CountByTicket(ctx context.Context, ticketID string) (int64, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// Create records attachment metadata
func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *models.TicketAttachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

// GetByID retrieves attachment metadata by ID
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id string) (*models.TicketAttachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketAttachment), args.Error(1)
}

// ListByTicket lists attachments of a ticket
func (m *MockAttachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.TicketAttachment, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TicketAttachment), args.Error(1)
}

// MockTimeEntryRepository implements repository.TimeEntryRepository
type MockTimeEntryRepository struct {
	mock.Mock
}

// Create books a time entry
func (m *MockTimeEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// TotalSeconds sums booked time
func (m *MockTimeEntryRepository) TotalSeconds(ctx context.Context, ticketID string) (int64, error) {
	args := m.Called(ctx, ticketID)
	return args.Get(0).(int64), args.Error(1)
}
