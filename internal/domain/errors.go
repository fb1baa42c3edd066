package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidAlert = errors.New("invalid alert parameters")
	ErrFeedClosed   = errors.New("feed closed")
	ErrNotConnected = errors.New("not connected")
)
