package repository

import (
	"errors"

	"github.com/stemsi/elearning/internal/database"
)

// Errors returned by every repository in place of driver errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrInUse     = errors.New("record is still referenced")
)

// classify maps pgx errors onto the repository sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsNoRows(err):
		return ErrNotFound
	case database.IsUniqueViolation(err):
		return ErrDuplicate
	case database.IsForeignKeyViolation(err):
		return ErrInUse
	default:
		return err
	}
}
