package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrMissingUser occurs when the caller identity is absent from the request.
	ErrMissingUser = errors.New("user identity missing")
	// ErrCheckoutInProgress occurs when the same user already holds the checkout lock.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)
