// ABOUTME: End-to-end reactor tests over loopback TCP
// ABOUTME: Calls, notifications, protocol recovery, idle timeout, backpressure, accept gating

package reactor

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/linerpc/internal/client"
	"github.com/harper/linerpc/internal/jsonrpc"
)

func startTestServer(t *testing.T, cfg Config, h Handler) *Reactor {
	t.Helper()
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:0"
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 8
	}
	r, err := New(cfg, h)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run()
	}()
	t.Cleanup(func() {
		r.Shutdown()
		<-done
	})
	return r
}

func dialTest(t *testing.T, r *Reactor) *client.Client {
	t.Helper()
	c, err := client.Dial(client.Config{PeerAddress: r.Addr().String()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSingleCall(t *testing.T) {
	r := startTestServer(t, Config{}, Requests(echoHandler))
	c := dialTest(t, r)

	req, err := jsonrpc.NewRequest("echo", json.RawMessage(`null`), jsonrpc.IntID(1))
	require.NoError(t, err)

	resp, err := c.CallOne(req)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, `"echo"`, string(resp.Result))
	n, ok := resp.ID.Int()
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	var calls atomic.Int32
	r := startTestServer(t, Config{}, Requests(func(c *Conn, req *jsonrpc.Request) *jsonrpc.Response {
		calls.Add(1)
		return echoHandler(c, req)
	}))
	c := dialTest(t, r)

	for i := 0; i < 100; i++ {
		note, err := jsonrpc.NewNotification("tick", nil)
		require.NoError(t, err)
		require.NoError(t, c.Notify(note))
	}

	// A fencing call on the same connection: ordering guarantees every
	// notification was handled before this response, and if any of them had
	// wrongly produced a reply, its result would arrive here instead.
	fence, err := jsonrpc.NewRequest("fence", nil, jsonrpc.IntID(777))
	require.NoError(t, err)
	resp, err := c.CallOne(fence)
	require.NoError(t, err)
	assert.Equal(t, `"fence"`, string(resp.Result))

	assert.EqualValues(t, 101, calls.Load())
}

func TestBatchMixing(t *testing.T) {
	r := startTestServer(t, Config{}, Requests(echoHandler))
	c := dialTest(t, r)

	foo, err := jsonrpc.NewRequest("foo", nil, jsonrpc.IntID(1))
	require.NoError(t, err)
	bar, err := jsonrpc.NewRequest("bar", nil, jsonrpc.StringID("2"))
	require.NoError(t, err)
	baz, err := jsonrpc.NewNotification("baz", nil)
	require.NoError(t, err)

	resps, err := c.Call(jsonrpc.Many([]*jsonrpc.Request{foo, bar, baz}))
	require.NoError(t, err)
	require.Equal(t, 2, resps.Len())
	assert.True(t, resps.IsMany())

	assert.Equal(t, `"foo"`, string(resps.Get(0).Result))
	n, ok := resps.Get(0).ID.Int()
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)

	assert.Equal(t, `"bar"`, string(resps.Get(1).Result))
	s, ok := resps.Get(1).ID.Str()
	assert.True(t, ok)
	assert.Equal(t, "2", s)
}

func TestProtocolErrorRecovery(t *testing.T) {
	r := startTestServer(t, Config{}, Requests(echoHandler))

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	rd := bufio.NewReader(conn)

	_, err = conn.Write([]byte(`{"jsonrpc":"1.0","method":"x","id":1}` + "\n"))
	require.NoError(t, err)

	line, err := rd.ReadBytes('\n')
	require.NoError(t, err)
	resp, err := jsonrpc.ParseResponse(line)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InvalidRequest, resp.Error.Code)
	n, ok := resp.ID.Int()
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)

	// The connection survives the bad frame.
	_, err = conn.Write([]byte(`{"jsonrpc":"2.0","method":"still-here","id":2}` + "\n"))
	require.NoError(t, err)
	line, err = rd.ReadBytes('\n')
	require.NoError(t, err)
	resp, err = jsonrpc.ParseResponse(line)
	require.NoError(t, err)
	assert.Equal(t, `"still-here"`, string(resp.Result))
}

func TestIdleTimeout(t *testing.T) {
	r := startTestServer(t, Config{ReadTimeout: 150 * time.Millisecond}, Requests(echoHandler))

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "idle connection should be closed by the server")

	// The slot was reclaimed; a fresh connection is served.
	c := dialTest(t, r)
	req, err := jsonrpc.NewRequest("after-timeout", nil, jsonrpc.IntID(1))
	require.NoError(t, err)
	resp, err := c.CallOne(req)
	require.NoError(t, err)
	assert.Equal(t, `"after-timeout"`, string(resp.Result))
}

func TestActivityRefreshesIdleDeadline(t *testing.T) {
	r := startTestServer(t, Config{ReadTimeout: 300 * time.Millisecond}, Requests(echoHandler))
	c := dialTest(t, r)

	// Keep the connection busy well past the original deadline.
	for i := 0; i < 4; i++ {
		time.Sleep(150 * time.Millisecond)
		req, err := jsonrpc.NewRequest("keepalive", nil, jsonrpc.IntID(int64(i)))
		require.NoError(t, err)
		resp, err := c.CallOne(req)
		require.NoError(t, err)
		assert.Equal(t, `"keepalive"`, string(resp.Result))
	}
}

func TestPartialWriteBackpressure(t *testing.T) {
	payload := strings.Repeat("x", 4<<20)
	r := startTestServer(t, Config{}, Requests(func(c *Conn, req *jsonrpc.Request) *jsonrpc.Response {
		result, _ := json.Marshal(payload)
		resp, err := jsonrpc.NewSuccess(result, req.ID)
		if err != nil {
			return nil
		}
		return resp
	}))

	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"jsonrpc":"2.0","method":"big","id":1}` + "\n"))
	require.NoError(t, err)

	rd := bufio.NewReaderSize(conn, 1<<16)
	line, err := rd.ReadBytes('\n')
	require.NoError(t, err)

	resp, err := jsonrpc.ParseResponse(line)
	require.NoError(t, err)
	require.True(t, resp.IsSuccess())

	var got string
	require.NoError(t, json.Unmarshal(resp.Result, &got))
	assert.Equal(t, len(payload), len(got), "the full frame must arrive despite partial writes")
}

func TestAcceptGatingWhenFull(t *testing.T) {
	r := startTestServer(t, Config{MaxClients: 1}, Requests(echoHandler))

	first := dialTest(t, r)
	req, err := jsonrpc.NewRequest("hold", nil, jsonrpc.IntID(1))
	require.NoError(t, err)
	_, err = first.CallOne(req)
	require.NoError(t, err)

	// The second connection sits in the backlog; its request is not served
	// while the slot table is full.
	second, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Write([]byte(`{"jsonrpc":"2.0","method":"queued","id":2}` + "\n"))
	require.NoError(t, err)

	require.NoError(t, second.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err = second.Read(make([]byte, 1))
	var nerr net.Error
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Timeout(), "no service while the slot table is full")

	// Freeing the slot re-enables the listener and the queued request is
	// served.
	require.NoError(t, first.Close())
	require.NoError(t, second.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := bufio.NewReader(second).ReadBytes('\n')
	require.NoError(t, err)
	resp, err := jsonrpc.ParseResponse(line)
	require.NoError(t, err)
	assert.Equal(t, `"queued"`, string(resp.Result))
}
