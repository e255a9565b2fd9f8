package repository

import "errors"

var (
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a lookup matches nothing
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is reused
	ErrAlreadyExists = errors.New("already exists")
)
