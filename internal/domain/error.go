package domain

import "errors"

var (
	// Payment workflow errors, mapped to HTTP status codes at the API edge.
	ErrValidation     = errors.New("validation failed")
	ErrVerification   = errors.New("payment signature verification failed")
	ErrNotFound       = errors.New("entity not found")
	ErrAmountMismatch = errors.New("amount validation failed")
	ErrServiceFailure = errors.New("service failure")
	ErrNotConfigured  = errors.New("payment service not configured")

	// Storage errors returned by repositories.
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
