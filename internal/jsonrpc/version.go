// ABOUTME: JSON-RPC protocol version constant
// ABOUTME: Only "2.0" is accepted; anything else is an invalid request

package jsonrpc

// Version is the only protocol revision this package speaks.
const Version = "2.0"
