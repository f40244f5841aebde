package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSubmissionInProgress  = errors.New("submission already in progress")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
