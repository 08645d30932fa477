package repository

import (
	"strings"

	apperrors "github.com/welldanyogia/webrana-helpdesk-backend/internal/errors"
)

// Common repository errors. They alias the application kinds so handlers can
// classify repository failures with apperrors.GetErrorCode.
var (
	ErrNotFound       = apperrors.ErrNotFound
	ErrDuplicateEntry = apperrors.ErrDuplicateEntry
	ErrInvalidInput   = apperrors.ErrInvalidInput
	ErrUnknownTicket  = apperrors.ErrUnknownTicket
)

// isDuplicateKeyError checks if the error is a duplicate key violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "23505") // PostgreSQL unique violation code
}

// isForeignKeyError checks if the error is a foreign key violation
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "violates foreign key constraint") ||
		strings.Contains(errStr, "FOREIGN KEY constraint") ||
		strings.Contains(errStr, "23503") // PostgreSQL foreign key violation code
}
