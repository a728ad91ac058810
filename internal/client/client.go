// ABOUTME: Blocking TCP client issuing calls, notifications and batches
// ABOUTME: Writes all frames with one gathering write, then reads one response per request-with-id

package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/harper/linerpc/internal/framing"
	"github.com/harper/linerpc/internal/jsonrpc"
	"github.com/harper/linerpc/internal/logger"
)

// ErrUnexpectedClose reports that the server closed the stream while
// responses were still owed.
var ErrUnexpectedClose = errors.New("client: connection closed before response")

// Config carries the dial target and per-connection buffer sizing.
type Config struct {
	PeerAddress    string
	ReadBufferSize int // default 4096
}

// Client is a JSON Lines RPC client over one TCP connection. It is not safe
// for concurrent use.
type Client struct {
	conn net.Conn
	rd   *framing.Reader
	tag  string
}

// Dial connects to the peer and prepares the framed reader.
func Dial(cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", cfg.PeerAddress)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.PeerAddress, err)
	}
	c := &Client{
		conn: conn,
		rd:   framing.NewReader(conn, cfg.ReadBufferSize),
		tag:  uuid.New().String()[:8],
	}
	logger.Debug("[%s] connected to %s", c.tag, cfg.PeerAddress)
	return c, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	logger.Debug("[%s] closing", c.tag)
	return c.conn.Close()
}

// Call writes every frame of the batch and reads responses until one has
// arrived per request that carries an id. Notifications in the batch expect
// nothing back. A batch of notifications only returns an empty batch.
func (c *Client) Call(reqs jsonrpc.Batch[*jsonrpc.Request]) (jsonrpc.Batch[*jsonrpc.Response], error) {
	expected := 0
	for _, req := range reqs.Items() {
		if !req.IsNotification() {
			expected++
		}
	}

	if err := c.writeBatch(reqs); err != nil {
		return jsonrpc.Batch[*jsonrpc.Response]{}, err
	}
	if expected == 0 {
		return jsonrpc.Batch[*jsonrpc.Response]{}, nil
	}

	resps := make([]*jsonrpc.Response, 0, expected)
	for len(resps) < expected {
		line, err := c.rd.Next()
		if err != nil {
			if errors.Is(err, framing.ErrClosed) {
				return jsonrpc.Batch[*jsonrpc.Response]{}, ErrUnexpectedClose
			}
			return jsonrpc.Batch[*jsonrpc.Response]{}, fmt.Errorf("client: read: %w", err)
		}
		resp, err := jsonrpc.ParseResponse(line)
		if err != nil {
			return jsonrpc.Batch[*jsonrpc.Response]{}, err
		}
		resps = append(resps, resp)
	}

	if expected == 1 {
		return jsonrpc.One(resps[0]), nil
	}
	return jsonrpc.Many(resps), nil
}

// CallOne is the single-request convenience over Call.
func (c *Client) CallOne(req *jsonrpc.Request) (*jsonrpc.Response, error) {
	if req.IsNotification() {
		return nil, jsonrpc.ErrMissingID
	}
	resps, err := c.Call(jsonrpc.One(req))
	if err != nil {
		return nil, err
	}
	return resps.Get(0), nil
}

// Notify serializes and writes the requests without ever reading. The
// requests need not be notifications on paper, but no response is awaited.
func (c *Client) Notify(reqs ...*jsonrpc.Request) error {
	if len(reqs) == 0 {
		return jsonrpc.ErrEmptyInput
	}
	return c.writeBatch(jsonrpc.Many(reqs))
}

// writeBatch serializes each frame separately and hands the set to the
// kernel as one gathering write.
func (c *Client) writeBatch(reqs jsonrpc.Batch[*jsonrpc.Request]) error {
	bufs := make(net.Buffers, 0, reqs.Len())
	for _, req := range reqs.Items() {
		line, err := req.AppendLine(nil)
		if err != nil {
			return err
		}
		bufs = append(bufs, line)
	}
	if _, err := bufs.WriteTo(c.conn); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}
