package net

import "errors"

// Address errors
var (
	// ErrInvalidAddress is returned when an address cannot be split into host and port
	ErrInvalidAddress = errors.New("invalid address")
)

// Pool lifecycle errors
var (
	// ErrPoolClosed is returned by GetChannel once the pool has been closed
	ErrPoolClosed = errors.New("channel pool is closed")

	// ErrShutdownTimeout is recorded when a channel does not finish closing
	// within the grace period. Close logs it and moves on.
	ErrShutdownTimeout = errors.New("channel shutdown timed out")
)
