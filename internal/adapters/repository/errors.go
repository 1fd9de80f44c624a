package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("score not found")
	ErrInvalidEntry = errors.New("invalid score entry")
	ErrClosed       = errors.New("store closed")
	ErrRemote       = errors.New("remote store error")
)
