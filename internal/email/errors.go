package email

import "errors"

var (
	// ErrNotFound indicates a message disappeared between listing and fetch
	ErrNotFound = errors.New("message not found")

	// ErrPermissionDenied indicates the account cannot access a message
	ErrPermissionDenied = errors.New("permission denied")
)
