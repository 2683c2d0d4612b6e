package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrConfigInvalid is returned when the remote target configuration can't be used.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrConnection is returned when the remote transport could not be established.
	ErrConnection = errors.New("connection failed")
)
