// ABOUTME: Success and failure responses with strict wire validation
// ABOUTME: The id field is always emitted; an unrecoverable id is the literal null

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set. The id echoes the request id by type and value; failure responses may
// carry the null id when the request id could not be recovered.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      *ID             `json:"id"`
}

// NewSuccess builds a success response. The id must be a present, non-null
// integer or string; result defaults to JSON null when nil.
func NewSuccess(result json.RawMessage, id *ID) (*Response, error) {
	if id == nil {
		return nil, ErrMissingID
	}
	if id.IsNull() {
		return nil, ErrInvalidID
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Response{JSONRPC: Version, Result: result, ID: id}, nil
}

// NewFailure builds a failure response. A nil id is replaced by the literal
// null id, matching the wire rule for unparseable requests.
func NewFailure(code ErrorCode, message string, data json.RawMessage, id *ID) *Response {
	if id == nil {
		null := NullID
		id = &null
	}
	return &Response{
		JSONRPC: Version,
		Error:   NewError(code, message, data),
		ID:      id,
	}
}

// IsSuccess reports whether the response carries a result.
func (r *Response) IsSuccess() bool { return r.Error == nil }

// AppendLine appends the compact wire form of the response, including the LF
// terminator, to dst.
func (r *Response) AppendLine(dst []byte) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return dst, fmt.Errorf("jsonrpc: encode response: %w", err)
	}
	dst = append(dst, b...)
	return append(dst, '\n'), nil
}

// ParseResponse parses one JSON Lines record into a response. A root object
// with an error member is a failure; anything else must be a success with
// both result and a non-null id.
func ParseResponse(line []byte) (*Response, error) {
	fields, err := parseObject(line)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, ErrInvalidResponse
		}
		return nil, err
	}
	if err := checkVersion(fields); err != nil {
		return nil, ErrInvalidResponse
	}

	if rawErr, ok := fields["error"]; ok {
		return parseFailure(fields, rawErr)
	}
	return parseSuccess(fields)
}

func parseSuccess(fields map[string]json.RawMessage) (*Response, error) {
	result, ok := fields["result"]
	if !ok {
		return nil, ErrInvalidResponse
	}
	rawID, ok := fields["id"]
	if !ok {
		return nil, ErrMissingID
	}
	id := new(ID)
	if err := id.UnmarshalJSON(rawID); err != nil {
		return nil, err
	}
	if id.IsNull() {
		return nil, ErrInvalidID
	}
	return &Response{JSONRPC: Version, Result: result, ID: id}, nil
}

func parseFailure(fields map[string]json.RawMessage, rawErr json.RawMessage) (*Response, error) {
	trimmed := bytes.TrimSpace(rawErr)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidErrorObject
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(rawErr, &members); err != nil {
		return nil, ErrInvalidErrorObject
	}

	rawCode, ok := members["code"]
	if !ok {
		return nil, ErrMissingErrorCode
	}
	if bytes.ContainsAny(rawCode, ".eE\"") {
		return nil, ErrInvalidErrorCode
	}
	var n int64
	if err := json.Unmarshal(rawCode, &n); err != nil {
		return nil, ErrInvalidErrorCode
	}
	code, err := CheckCode(n)
	if err != nil {
		return nil, err
	}

	rawMsg, ok := members["message"]
	if !ok {
		return nil, ErrMissingErrorMessage
	}
	var msg string
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return nil, ErrInvalidErrorMessage
	}

	rawID, ok := fields["id"]
	if !ok {
		return nil, ErrMissingID
	}
	id := new(ID)
	if err := id.UnmarshalJSON(rawID); err != nil {
		return nil, err
	}

	return &Response{
		JSONRPC: Version,
		Error:   NewError(code, msg, members["data"]),
		ID:      id,
	}, nil
}
