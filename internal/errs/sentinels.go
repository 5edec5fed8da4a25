// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist locally.
	ErrNotFound = errors.New("not found")

	// ErrBoardNotLoaded indicates an operation that requires a resident board.
	ErrBoardNotLoaded = errors.New("board not loaded")

	// ErrUnauthorized indicates a missing or rejected session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReorderPending rejects a column reorder while another is in flight.
	ErrReorderPending = errors.New("column reorder already in flight")

	// ErrAckTimeout indicates a realtime command did not receive its
	// acknowledgement within the bounded timeout.
	ErrAckTimeout = errors.New("socket ack timeout")

	// ErrInvalidPayload indicates a wire payload that failed validation and
	// cannot be applied.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrRealtimeUnavailable rejects socket-first operations while the
	// realtime channel is not connected.
	ErrRealtimeUnavailable = errors.New("realtime channel not connected")
)
