// ABOUTME: Request/response ID as a closed sum of integer, string and null
// ABOUTME: Absence is modelled as a nil *ID; floats, booleans, objects and arrays are rejected

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type idKind uint8

const (
	idNull idKind = iota
	idInt
	idString
)

// ID is a JSON-RPC request id. A nil *ID means the field was absent on the
// wire, which marks a notification; a non-nil ID with the null kind is the
// literal JSON null and still expects a response.
type ID struct {
	kind idKind
	num  int64
	str  string
}

// NullID is the literal JSON null id, used on error responses when the
// request id could not be recovered.
var NullID = ID{kind: idNull}

func IntID(n int64) *ID { return &ID{kind: idInt, num: n} }

func StringID(s string) *ID { return &ID{kind: idString, str: s} }

func (id *ID) IsNull() bool   { return id != nil && id.kind == idNull }
func (id *ID) IsInt() bool    { return id != nil && id.kind == idInt }
func (id *ID) IsString() bool { return id != nil && id.kind == idString }

// Int returns the integer value and whether the id is an integer.
func (id *ID) Int() (int64, bool) {
	if id == nil || id.kind != idInt {
		return 0, false
	}
	return id.num, true
}

// Str returns the string value and whether the id is a string.
func (id *ID) Str() (string, bool) {
	if id == nil || id.kind != idString {
		return "", false
	}
	return id.str, true
}

// Equal reports whether both ids have the same kind and value. Two nil ids
// are equal; nil never equals a present id.
func (id *ID) Equal(other *ID) bool {
	if id == nil || other == nil {
		return id == other
	}
	return id.kind == other.kind && id.num == other.num && id.str == other.str
}

func (id *ID) String() string {
	if id == nil {
		return "<absent>"
	}
	switch id.kind {
	case idInt:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return strconv.Quote(id.str)
	default:
		return "null"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idInt:
		return strconv.AppendInt(nil, id.num, 10), nil
	case idString:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidID
	}
	switch data[0] {
	case 'n':
		if !bytes.Equal(data, []byte("null")) {
			return ErrInvalidID
		}
		*id = ID{kind: idNull}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidID
		}
		*id = ID{kind: idString, str: s}
		return nil
	case '{', '[', 't', 'f':
		return ErrInvalidID
	}
	// Numeric token. Fractions and exponents are not valid ids here even
	// though JSON-RPC nominally allows any Number.
	if bytes.ContainsAny(data, ".eE") {
		return ErrInvalidID
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidID
	}
	*id = ID{kind: idInt, num: n}
	return nil
}
