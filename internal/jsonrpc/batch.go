// ABOUTME: One-or-many container for framed requests and responses
// ABOUTME: A batch on the wire is concatenated LF-terminated frames, never a JSON array

package jsonrpc

import "bytes"

// Frame is a JSON-RPC object that serializes as one JSON Lines record.
type Frame interface {
	AppendLine(dst []byte) ([]byte, error)
}

// Batch holds one or many frames. The zero value is empty; parsing never
// yields an empty batch.
type Batch[T Frame] struct {
	items []T
	many  bool
}

// One wraps a single frame.
func One[T Frame](v T) Batch[T] {
	return Batch[T]{items: []T{v}}
}

// Many wraps a sequence of frames. A one-element sequence still reads back
// as One; the distinction is carried only for len >= 2.
func Many[T Frame](vs []T) Batch[T] {
	return Batch[T]{items: vs, many: len(vs) >= 2}
}

func (b Batch[T]) Len() int { return len(b.items) }

// IsMany reports whether the batch was built or parsed as a sequence of two
// or more frames.
func (b Batch[T]) IsMany() bool { return b.many }

// Get returns the i-th element.
func (b Batch[T]) Get(i int) T { return b.items[i] }

// Items returns the backing slice for iteration.
func (b Batch[T]) Items() []T { return b.items }

// AppendLines appends every element's wire form to dst. Per-element LF
// terminators are the only separators.
func (b Batch[T]) AppendLines(dst []byte) ([]byte, error) {
	var err error
	for _, it := range b.items {
		if dst, err = it.AppendLine(dst); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// ParseRequests splits data on LF and parses each non-empty line as a
// request. Zero lines fail as empty input.
func ParseRequests(data []byte) (Batch[*Request], error) {
	return parseBatch(data, ParseRequest)
}

// ParseResponses splits data on LF and parses each non-empty line as a
// response.
func ParseResponses(data []byte) (Batch[*Response], error) {
	return parseBatch(data, ParseResponse)
}

func parseBatch[T Frame](data []byte, parse func([]byte) (T, error)) (Batch[T], error) {
	var items []T
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i]
			data = data[i+1:]
		} else {
			data = nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		it, err := parse(line)
		if err != nil {
			return Batch[T]{}, err
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return Batch[T]{}, ErrEmptyInput
	}
	return Batch[T]{items: items, many: len(items) >= 2}, nil
}
