// ABOUTME: Sentinel errors for the line-framed stream layer
// ABOUTME: WouldBlock stays internal to the reactor loop and never reaches user code

package framing

import "errors"

var (
	// ErrWouldBlock signals that the underlying socket has no data (reads)
	// or no buffer space (writes) right now. Sources over non-blocking file
	// descriptors translate EAGAIN into this value.
	ErrWouldBlock = errors.New("framing: operation would block")

	// ErrClosed signals a graceful close of the peer's write side.
	ErrClosed = errors.New("framing: stream closed")

	// ErrLineTooLong signals a frame larger than the read buffer capacity.
	ErrLineTooLong = errors.New("framing: line exceeds buffer capacity")
)
