package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	FindIDByEmail(ctx context.Context, email string) (*string, error)
}

// customerRepository implements CustomerRepository using GORM
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new CustomerRepository instance
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// Create creates a new customer
func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	result := r.db.WithContext(ctx).Create(customer)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("customer with email '%s' already exists: %w", customer.Email, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create customer: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a customer by its ID
func (r *customerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&customer)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer by ID: %w", result.Error)
	}
	return &customer, nil
}

// FindIDByEmail returns the id of the customer whose email matches exactly
// (case-sensitive). A missing customer is not an error: it returns nil, nil.
// Should the store ever hold duplicates, the oldest row wins.
func (r *customerRepository) FindIDByEmail(ctx context.Context, email string) (*string, error) {
	var customers []models.Customer
	result := r.db.WithContext(ctx).
		Select("id").
		Where("email = ?", email).
		Order("created_at ASC").
		Limit(1).
		Find(&customers)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find customer by email: %w", result.Error)
	}
	if len(customers) == 0 {
		return nil, nil
	}
	id := customers[0].ID
	return &id, nil
}
