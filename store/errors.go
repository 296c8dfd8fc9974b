// Package store persists users, groups and posts.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateSlug is returned when a group slug is already taken.
	ErrDuplicateSlug = errors.New("group with this slug already exists")

	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("user with this username already exists")

	// ErrForeignKey is returned when a post references a missing user or group.
	ErrForeignKey = errors.New("foreign key constraint violated")

	ErrConnectionFailed = errors.New("database connection failed")
	ErrMigrationFailed  = errors.New("database migration failed")
	ErrTxFailed         = errors.New("transaction failed")
	ErrUnknownDriver    = errors.New("unknown database driver")
)

// StoreError wraps errors with the operation and entity they concern.
type StoreError struct {
	Op      string
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
