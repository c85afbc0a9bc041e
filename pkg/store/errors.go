package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a row fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLocked is returned by Open when another process holds the database lock.
	ErrLocked = errors.New("database is locked by another process")

	// ErrSchemaTooNew is returned when the database was written by a newer,
	// incompatible schema.
	ErrSchemaTooNew = errors.New("database schema is newer than supported")

	// ErrUnknownTable is returned for a group without a backing table.
	ErrUnknownTable = errors.New("unknown table")
)

// NotFoundError wraps ErrNotFound with the table and id that were looked up.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s row not found: %s", e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError lists every rejected field with a short reason.
type ValidationError struct {
	Table    string
	Problems map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Problems))
	for f := range e.Problems {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e.Problems[f]
	}
	return fmt.Sprintf("invalid %s row (%s)", e.Table, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
