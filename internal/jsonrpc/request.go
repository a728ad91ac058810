// ABOUTME: Request construction, line parsing and wire serialization
// ABOUTME: One request is one compact JSON object terminated by a single LF

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is a JSON-RPC 2.0 request or notification. A nil ID marks a
// notification; an ID holding JSON null is a regular request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params,omitempty"`
	ID      *ID    `json:"id,omitempty"`
}

// NewRequest validates method, params and id and builds a request.
func NewRequest(method string, params json.RawMessage, id *ID) (*Request, error) {
	if method == "" {
		return nil, ErrInvalidMethod
	}
	if params != nil {
		if err := CheckParams(params); err != nil {
			return nil, err
		}
	}
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  Params(params),
		ID:      id,
	}, nil
}

// NewNotification builds a request with no id.
func NewNotification(method string, params json.RawMessage) (*Request, error) {
	return NewRequest(method, params, nil)
}

// IsNotification reports whether the id field was absent.
func (r *Request) IsNotification() bool { return r.ID == nil }

// ParseRequest parses one JSON Lines record into a request. The trailing LF
// is optional. Field-level violations surface as the matching sentinel.
func ParseRequest(line []byte) (*Request, error) {
	fields, err := parseObject(line)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(fields); err != nil {
		return nil, err
	}

	req := &Request{JSONRPC: Version}

	rawMethod, ok := fields["method"]
	if !ok {
		return nil, ErrMissingMethod
	}
	if err := json.Unmarshal(rawMethod, &req.Method); err != nil {
		return nil, ErrInvalidMethod
	}
	if req.Method == "" {
		return nil, ErrInvalidMethod
	}

	if rawParams, ok := fields["params"]; ok {
		if err := req.Params.UnmarshalJSON(rawParams); err != nil {
			return nil, err
		}
	}

	if rawID, ok := fields["id"]; ok {
		id := new(ID)
		if err := id.UnmarshalJSON(rawID); err != nil {
			return nil, err
		}
		req.ID = id
	}

	return req, nil
}

// AppendLine appends the compact wire form of the request, including the LF
// terminator, to dst.
func (r *Request) AppendLine(dst []byte) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return dst, fmt.Errorf("jsonrpc: encode request: %w", err)
	}
	dst = append(dst, b...)
	return append(dst, '\n'), nil
}

// SalvageID recovers a response id from a request line that failed to parse.
// It returns the parsed id when the line is a JSON object with a usable id
// field, and nil otherwise; callers substitute the null id in that case.
func SalvageID(line []byte) *ID {
	fields, err := parseObject(line)
	if err != nil {
		return nil
	}
	rawID, ok := fields["id"]
	if !ok {
		return nil
	}
	id := new(ID)
	if err := id.UnmarshalJSON(rawID); err != nil {
		return nil
	}
	return id
}

// parseObject splits one JSON Lines record into its top-level members.
// A malformed document is a syntax error; a well-formed document whose root
// is not an object is an invalid request.
func parseObject(line []byte) (map[string]json.RawMessage, error) {
	line = bytes.TrimRight(line, "\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, ErrEmptyInput
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, ErrInvalidRequest
		}
		return nil, ErrSyntax
	}
	return fields, nil
}

func checkVersion(fields map[string]json.RawMessage) error {
	raw, ok := fields["jsonrpc"]
	if !ok {
		return ErrInvalidRequest
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || v != Version {
		return ErrInvalidRequest
	}
	return nil
}
