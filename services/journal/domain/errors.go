// Package domain holds the sentinel errors, records, and state machine shared
// by the ByPersistenceId and ByTag query sources.
package domain

import "errors"

// Sentinel errors for the journal read-side. Use errors.Is() to check these.
var (
	// ErrInvalidRange indicates from > to at query construction time.
	ErrInvalidRange = errors.New("invalid range: from > to")

	// ErrDecodeFailure corresponds to the spec's DecodeError: a raw stored value
	// did not parse as a persistent record or event reference. Fatal — fails the stream.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrStoreFailure corresponds to the spec's StoreError: a range read returned
	// an error from the store. Fatal — fails the stream.
	ErrStoreFailure = errors.New("store failure")

	// ErrProtocolViolation corresponds to the spec's ProtocolError: the state
	// machine observed an impossible transition. Fatal; indicates a bug.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrSourceClosed is returned by Next after Close has been called, and by any
	// pull that was in flight when Close was called.
	ErrSourceClosed = errors.New("source closed")

	// ErrConcurrentPull is returned when Next is called again before a prior call
	// has returned. A source serves exactly one pull at a time.
	ErrConcurrentPull = errors.New("concurrent pull: a Next call is already in flight")
)
