// ABOUTME: Request params restricted to JSON array or object
// ABOUTME: Absence is a nil slice and is distinct from an empty array

package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Params holds the raw params subtree of a request. A nil Params means the
// field was absent. When present the root must be an array (positional) or
// an object (named).
type Params json.RawMessage

// CheckParams validates that raw is a structured JSON value.
func CheckParams(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ErrInvalidParams
	}
	if trimmed[0] != '[' && trimmed[0] != '{' {
		return ErrInvalidParams
	}
	return nil
}

func (p Params) IsArray() bool {
	t := bytes.TrimSpace(p)
	return len(t) > 0 && t[0] == '['
}

func (p Params) IsObject() bool {
	t := bytes.TrimSpace(p)
	return len(t) > 0 && t[0] == '{'
}

func (p Params) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	if err := CheckParams(data); err != nil {
		return err
	}
	*p = append((*p)[:0], data...)
	return nil
}

// Unmarshal decodes the params subtree into v.
func (p Params) Unmarshal(v interface{}) error {
	if len(p) == 0 {
		return ErrInvalidParams
	}
	return json.Unmarshal(p, v)
}
