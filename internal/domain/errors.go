package domain

import "errors"

var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrNotOwner         = errors.New("requester is not the poll owner")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidSession   = errors.New("invalid session")
	ErrInvalidIdentity  = errors.New("identity could not be verified")
)
