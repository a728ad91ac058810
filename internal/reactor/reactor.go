// ABOUTME: Single-threaded readiness loop multiplexing many JSON Lines clients
// ABOUTME: Level-triggered poll array, bounded slot table, FIFO idle timeouts, accept gating

package reactor

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/harper/linerpc/internal/framing"
	"github.com/harper/linerpc/internal/jsonrpc"
	"github.com/harper/linerpc/internal/logger"
)

// Handler consumes the frames drained from one readiness event and returns
// the responses to write, in order. A nil slice means no response is owed
// (all inputs were notifications). A non-nil error is fatal to the
// connection, never to the reactor. Handlers run synchronously on the event
// loop; while one runs no other client is served. Frame slices are only
// valid until the handler returns.
type Handler func(c *Conn, frames [][]byte) ([]*jsonrpc.Response, error)

// Config carries the server's socket and resource limits.
type Config struct {
	BindAddress    string
	MaxClients     int
	ReadTimeout    time.Duration // idle deadline per client, default 60s
	ReadBufferSize int           // per-client line buffer, default 4096
}

const DefaultReadTimeout = 60 * time.Second

type connState uint8

const (
	stateReading connState = iota
	stateWriting
)

// Conn is the per-client slot handed to handlers. All fields are owned by
// the reactor goroutine.
type Conn struct {
	fd    int
	tag   string
	addr  string
	src   connFD
	rd    *framing.Reader
	wq    framing.WriteQueue
	state connState
	node  *deadlineNode
	slot  int

	frames [][]byte // drain scratch, reused between events
}

// Tag returns the short connection id used in log lines.
func (c *Conn) Tag() string { return c.tag }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.addr }

// Reactor owns the listening socket and all client slots. It is not safe
// for concurrent use; only Shutdown may be called from other goroutines.
type Reactor struct {
	cfg     Config
	handler Handler

	lfd  int
	addr *net.TCPAddr

	conns  []*Conn
	free   []int
	active int
	dl     *deadlineList

	pollfds []unix.PollFd
	slots   []int // parallel to pollfds: client slot, -1 listener, -2 wake

	wakeR, wakeW int
}

// New resolves the bind address, opens the listening socket and sizes the
// client and timeout pools.
func New(cfg Config, handler Handler) (*Reactor, error) {
	if handler == nil {
		return nil, errors.New("reactor: nil handler")
	}
	if cfg.MaxClients <= 0 {
		return nil, errors.New("reactor: max clients must be positive")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = framing.DefaultBufferSize
	}

	lfd, addr, err := listenTCP(cfg.BindAddress)
	if err != nil {
		return nil, err
	}

	var pipefds [2]int
	if err := unix.Pipe(pipefds[:]); err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("reactor: pipe: %w", err)
	}
	unix.SetNonblock(pipefds[0], true)
	unix.SetNonblock(pipefds[1], true)

	r := &Reactor{
		cfg:     cfg,
		handler: handler,
		lfd:     lfd,
		addr:    addr,
		conns:   make([]*Conn, cfg.MaxClients),
		free:    make([]int, 0, cfg.MaxClients),
		dl:      newDeadlineList(cfg.MaxClients),
		wakeR:   pipefds[0],
		wakeW:   pipefds[1],
	}
	for slot := cfg.MaxClients - 1; slot >= 0; slot-- {
		r.free = append(r.free, slot)
	}
	return r, nil
}

// Addr returns the bound listening address.
func (r *Reactor) Addr() *net.TCPAddr { return r.addr }

// Shutdown wakes the loop and makes Run return after closing every client.
// Safe to call from any goroutine, once.
func (r *Reactor) Shutdown() {
	var b [1]byte
	unix.Write(r.wakeW, b[:])
}

// Run drives the event loop until Shutdown or a fatal poll error.
func (r *Reactor) Run() error {
	defer r.cleanup()
	logger.Info("listening on %s (max %d clients)", r.addr, r.cfg.MaxClients)

	for {
		r.buildPollSet()
		_, err := unix.Poll(r.pollfds, r.nextTimeoutMillis())
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("reactor: poll: %w", err)
		}

		now := time.Now()
		r.expire(now)

		for i := range r.pollfds {
			if r.pollfds[i].Revents == 0 {
				continue
			}
			switch slot := r.slots[i]; slot {
			case -2:
				return nil
			case -1:
				r.acceptAll(now)
			default:
				c := r.conns[slot]
				if c == nil {
					continue
				}
				if c.state == stateWriting {
					r.writable(c, now)
				} else {
					r.readable(c, now)
				}
			}
		}
	}
}

// buildPollSet rebuilds the level-triggered poll array. The listener is
// left out while the slot table is full; each client contributes its
// current interest mask.
func (r *Reactor) buildPollSet() {
	r.pollfds = r.pollfds[:0]
	r.slots = r.slots[:0]

	r.pollfds = append(r.pollfds, unix.PollFd{Fd: int32(r.wakeR), Events: unix.POLLIN})
	r.slots = append(r.slots, -2)

	if r.active < r.cfg.MaxClients {
		r.pollfds = append(r.pollfds, unix.PollFd{Fd: int32(r.lfd), Events: unix.POLLIN})
		r.slots = append(r.slots, -1)
	}

	for slot, c := range r.conns {
		if c == nil {
			continue
		}
		events := int16(unix.POLLIN)
		if c.state == stateWriting {
			events = unix.POLLOUT
		}
		r.pollfds = append(r.pollfds, unix.PollFd{Fd: int32(c.fd), Events: events})
		r.slots = append(r.slots, slot)
	}
}

// nextTimeoutMillis derives the poll timeout from the head of the deadline
// FIFO: -1 (infinite) when idle, clamped to >= 0 otherwise.
func (r *Reactor) nextTimeoutMillis() int {
	head := r.dl.head
	if head == nil {
		return -1
	}
	d := time.Until(head.deadline)
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// expire half-closes every client whose deadline has passed. The read side
// observes the close on the next readiness pass and frees the slot, letting
// queued writes drain first.
func (r *Reactor) expire(now time.Time) {
	for r.dl.head != nil && !r.dl.head.deadline.After(now) {
		c := r.dl.head.conn
		logger.Debug("[%s] idle timeout, shutting down read side", c.tag)
		unix.Shutdown(c.fd, unix.SHUT_RD)
		r.dl.release(c.node)
		c.node = nil
	}
}

// acceptAll accepts until would-block or the slot table fills.
func (r *Reactor) acceptAll(now time.Time) {
	for r.active < r.cfg.MaxClients {
		nfd, sa, err := unix.Accept(r.lfd)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
				continue
			}
			if !errors.Is(err, unix.EAGAIN) {
				logger.Warn("accept failed: %v", err)
			}
			return
		}
		unix.SetNonblock(nfd, true)
		unix.CloseOnExec(nfd)

		slot := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]

		c := &Conn{
			fd:   nfd,
			tag:  uuid.New().String()[:8],
			addr: sockaddrString(sa),
			src:  connFD{fd: nfd},
			slot: slot,
		}
		c.rd = framing.NewReader(c.src, r.cfg.ReadBufferSize)
		c.node = r.dl.acquire(c, now.Add(r.cfg.ReadTimeout))
		r.conns[slot] = c
		r.active++

		logger.Debug("[%s] accepted %s (%d/%d clients)", c.tag, c.addr, r.active, r.cfg.MaxClients)
	}
}

// readable drains complete frames, invokes the handler and writes its
// responses with one gathering syscall. A partial write flips the interest
// mask to WRITE and suspends reads until the queue drains.
func (r *Reactor) readable(c *Conn, now time.Time) {
	for {
		frames, err := c.rd.Drain(c.frames[:0])
		c.frames = frames
		closed := errors.Is(err, framing.ErrClosed)
		if err != nil && !closed {
			logger.Warn("[%s] read failed: %v", c.tag, err)
			r.closeConn(c)
			return
		}

		if len(frames) > 0 {
			if c.node != nil {
				r.dl.refresh(c.node, now.Add(r.cfg.ReadTimeout))
			}
			resps, herr := r.handler(c, frames)
			if herr != nil {
				logger.Warn("[%s] handler failed: %v", c.tag, herr)
				r.closeConn(c)
				return
			}
			if len(resps) > 0 {
				for _, resp := range resps {
					line, err := resp.AppendLine(nil)
					if err != nil {
						logger.Error("[%s] encode response: %v", c.tag, err)
						r.closeConn(c)
						return
					}
					c.wq.Push(line)
				}
				done, werr := c.wq.Flush(c.src)
				if werr != nil {
					logger.Warn("[%s] write failed: %v", c.tag, werr)
					r.closeConn(c)
					return
				}
				if !done {
					c.state = stateWriting
					return
				}
			}
		}

		if closed {
			logger.Debug("[%s] peer closed", c.tag)
			r.closeConn(c)
			return
		}
		if len(frames) == 0 {
			return
		}
	}
}

// writable resumes a partial write. Once the queue drains the interest mask
// flips back to READ and any frames that were buffered meanwhile are
// processed immediately, since level-triggered poll will not re-signal them.
func (r *Reactor) writable(c *Conn, now time.Time) {
	done, err := c.wq.Flush(c.src)
	if err != nil {
		logger.Warn("[%s] write failed: %v", c.tag, err)
		r.closeConn(c)
		return
	}
	if done {
		c.state = stateReading
		if c.rd.Buffered() {
			r.readable(c, now)
		}
	}
}

func (r *Reactor) closeConn(c *Conn) {
	unix.Close(c.fd)
	if c.node != nil {
		r.dl.release(c.node)
		c.node = nil
	}
	r.conns[c.slot] = nil
	r.free = append(r.free, c.slot)
	r.active--
	logger.Debug("[%s] closed (%d/%d clients)", c.tag, r.active, r.cfg.MaxClients)
}

func (r *Reactor) cleanup() {
	for _, c := range r.conns {
		if c != nil {
			r.closeConn(c)
		}
	}
	unix.Close(r.lfd)
	unix.Close(r.wakeR)
	unix.Close(r.wakeW)
}
