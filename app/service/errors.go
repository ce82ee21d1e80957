package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProviderUnsupported = errors.New("provider is not supported")
	ErrCallbackRejected    = errors.New("callback rejected")
	ErrMissingReference    = errors.New("callback has no reference")
	ErrInvalidUser         = errors.New("invalid user id")
	ErrProfileNotFound     = errors.New("profile not found")
)
