package service

import "errors"

var (
	// ErrInvalidInput marks request errors the caller can fix
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoDateRange is returned for line charts of views without a date range
	ErrNoDateRange = errors.New("view has no date range")
)
