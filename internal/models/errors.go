package models

import "errors"

// Error kinds shared by every layer. Wrap them with fmt.Errorf("...: %w")
// and classify with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidTerm   = errors.New("invalid term")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAccessDenied  = errors.New("access denied")
	ErrUpstream      = errors.New("upstream failure")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
)

// ErrorResponse is the JSON body of every failed HTTP request
type ErrorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}
