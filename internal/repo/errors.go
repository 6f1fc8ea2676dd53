package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// ErrNotFound is returned by the typed queries when a requested record does
// not exist. It aliases gorm.ErrRecordNotFound for convenience and
// consistency across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// storageErr wraps a driver error. Unique violations are flagged so callers
// can match domain.ErrConflict.
func storageErr(op string, kind domain.Kind, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{
		Op:       op,
		Kind:     kind,
		Err:      err,
		Conflict: isDuplicate(err),
	}
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
