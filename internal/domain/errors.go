package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNoPrice       = errors.New("no price available")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrClaimHeld     = errors.New("claim already held")
)
