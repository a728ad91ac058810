// ABOUTME: Closed set of protocol error sentinels shared by parse and construction paths
// ABOUTME: Callers classify failures with errors.Is against these values

package jsonrpc

import "errors"

// Inbound protocol violations.
var (
	ErrSyntax              = errors.New("jsonrpc: malformed JSON")
	ErrInvalidRequest      = errors.New("jsonrpc: invalid request")
	ErrMissingMethod       = errors.New("jsonrpc: missing method")
	ErrInvalidMethod       = errors.New("jsonrpc: invalid method")
	ErrInvalidParams       = errors.New("jsonrpc: params must be array or object")
	ErrInvalidID           = errors.New("jsonrpc: id must be integer, string or null")
	ErrMissingID           = errors.New("jsonrpc: missing id")
	ErrInvalidResponse     = errors.New("jsonrpc: invalid response")
	ErrMissingErrorCode    = errors.New("jsonrpc: error object missing code")
	ErrInvalidErrorCode    = errors.New("jsonrpc: error code outside reserved range")
	ErrReservedErrorCode   = errors.New("jsonrpc: error code reserved for future use")
	ErrMissingErrorMessage = errors.New("jsonrpc: error object missing message")
	ErrInvalidErrorMessage = errors.New("jsonrpc: error message must be a string")
	ErrInvalidErrorObject  = errors.New("jsonrpc: error field must be an object")
)

// Batch framing.
var ErrEmptyInput = errors.New("jsonrpc: empty input")
