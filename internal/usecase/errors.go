package usecase

import "errors"

// Sentinels returned (wrapped) by the services; httpapi maps them to status
// codes and LifecycleHooks swallows ErrDependencyUnavailable.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
