// ABOUTME: Adapter from raw frames to parsed per-request dispatch
// ABOUTME: Malformed frames get ParseError/InvalidRequest replies with a salvaged or null id

package reactor

import (
	"errors"

	"github.com/harper/linerpc/internal/jsonrpc"
)

// RequestFunc handles one parsed request. For notifications the return
// value is discarded; otherwise a nil response means no reply for that
// request.
type RequestFunc func(c *Conn, req *jsonrpc.Request) *jsonrpc.Response

// Requests wraps a per-request callback into a frame Handler. Each frame is
// parsed independently; frames that fail to parse are answered in place
// with the matching protocol error so one bad record never poisons its
// neighbors or the connection.
func Requests(fn RequestFunc) Handler {
	return func(c *Conn, frames [][]byte) ([]*jsonrpc.Response, error) {
		var out []*jsonrpc.Response
		for _, frame := range frames {
			req, err := jsonrpc.ParseRequest(frame)
			if err != nil {
				out = append(out, failureFor(frame, err))
				continue
			}
			resp := fn(c, req)
			if req.IsNotification() {
				continue
			}
			if resp != nil {
				out = append(out, resp)
			}
		}
		return out, nil
	}
}

// failureFor maps a parse failure onto an error response, salvaging the
// request id when the line was well-formed enough to carry one.
func failureFor(frame []byte, err error) *jsonrpc.Response {
	code := jsonrpc.InvalidRequest
	if errors.Is(err, jsonrpc.ErrSyntax) {
		code = jsonrpc.ParseError
	}
	return jsonrpc.NewFailure(code, code.String(), nil, jsonrpc.SalvageID(frame))
}
