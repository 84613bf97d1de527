package store

import "errors"

var (
	ErrNotFound    = errors.New("store: resource not found")
	ErrInvalidDSN  = errors.New("store: invalid database DSN")
	ErrUnavailable = errors.New("store: database unavailable")
)
