package memcache

import "errors"

var (
	// ErrOutOfRange is reported when a request targets an address that no
	// segment of the memory cache owns.
	ErrOutOfRange = errors.New("address out of range")

	// ErrProtocolViolation is reported when the external memory or an L1
	// cache sends a response that does not match any pending transaction.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrResourceExhausted marks that a table is full. The engine retries
	// later and the requester never sees it.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrUnsupportedRequest is reported for unknown commands and for bursts
	// that do not fit in one line.
	ErrUnsupportedRequest = errors.New("unsupported request")

	// ErrInvariantViolation is returned by CheckInvariants.
	ErrInvariantViolation = errors.New("invariant violation")
)
