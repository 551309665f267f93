package api

import "time"

// EnvelopeResponse is one SSE event's JSON payload.
type EnvelopeResponse struct {
	Offset        uint64 `json:"offset"`
	PersistenceID string `json:"persistence_id"`
	SequenceNr    uint64 `json:"sequence_nr"`
	Payload       []byte `json:"payload"`
} // @name EventEnvelope

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid range: from > to"`
} // @name ErrorResponse

// AdminSourceResponse describes one currently-active source for the admin
// introspection endpoint.
type AdminSourceResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Descriptor string    `json:"descriptor"`
	Live       bool      `json:"live"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
} // @name AdminSourceInfo
