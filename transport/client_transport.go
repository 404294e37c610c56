// Package transport implements the request/reply link to the simulator.
//
// The simulator binds a ZeroMQ REP socket; the client connects a REQ socket to it.
// A REQ socket enforces strict lock-step: every send must be followed by exactly one
// receive before the next send. ReqTransport keeps that invariant for concurrent
// callers by holding a single lock across the whole exchange.
//
//	goroutine-1 ──RoundTrip──┐  (holds mu: send → recv)
//	goroutine-2 ──RoundTrip──┼──→ REQ socket ──→ tcp://host:port (REP)
//	goroutine-3 ──RoundTrip──┘  (waits for mu)
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
)

var (
	// ErrClosed is returned by RoundTrip after Close.
	ErrClosed = errors.New("transport closed")

	// ErrBroken is returned once an exchange was abandoned before its reply arrived.
	// The REQ socket still expects that reply, so it cannot carry another request.
	ErrBroken = errors.New("transport broken by an abandoned request")
)

// RoundTripper sends one request payload and blocks for its single reply.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req []byte) ([]byte, error)
	Endpoint() string
	Close() error
}

// Error describes a send or receive failure on the socket.
type Error struct {
	Op       string // "dial", "send" or "recv"
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Endpoint formats a ZeroMQ TCP endpoint, e.g. "tcp://localhost:5050".
func Endpoint(host string, port int) string {
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// ReqTransport owns one ZeroMQ REQ socket for its entire lifetime.
type ReqTransport struct {
	socket   zmq4.Socket
	endpoint string
	cancel   context.CancelFunc
	mu       sync.Mutex // held across send and receive
	broken   bool       // protected by mu
	closed   atomic.Bool
}

// DialReq connects a REQ socket to endpoint. retry is the interval between connection
// attempts; zero keeps the library default. The connection is made eagerly and the
// library gives up after 10 attempts, so DialReq fails with a "dial" *Error when no
// simulator is listening within roughly 10*retry.
func DialReq(endpoint string, retry time.Duration) (*ReqTransport, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var opts []zmq4.Option
	if retry > 0 {
		opts = append(opts, zmq4.WithDialerRetry(retry))
	}
	socket := zmq4.NewReq(ctx, opts...)

	if err := socket.Dial(endpoint); err != nil {
		cancel()
		socket.Close()
		return nil, &Error{Op: "dial", Endpoint: endpoint, Err: err}
	}

	return &ReqTransport{
		socket:   socket,
		endpoint: endpoint,
		cancel:   cancel,
	}, nil
}

// RoundTrip sends req and waits for exactly one reply.
//
// Without a deadline on ctx the call blocks until the simulator answers. If ctx ends
// first the exchange is abandoned and the transport becomes unusable (ErrBroken).
func (t *ReqTransport) RoundTrip(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return nil, &Error{Op: "send", Endpoint: t.endpoint, Err: ErrClosed}
	}
	if t.broken {
		return nil, &Error{Op: "send", Endpoint: t.endpoint, Err: ErrBroken}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "send", Endpoint: t.endpoint, Err: err}
	}

	if err := t.socket.Send(zmq4.NewMsg(req)); err != nil {
		return nil, &Error{Op: "send", Endpoint: t.endpoint, Err: err}
	}

	done := make(chan recvResult, 1) // buffered so the receiver never leaks blocked on send
	go func() {
		msg, err := t.socket.Recv()
		done <- recvResult{msg: msg, err: err}
	}()

	r, err := awaitReply(ctx, done)
	if err != nil {
		t.broken = true
		return nil, &Error{Op: "recv", Endpoint: t.endpoint, Err: err}
	}
	if r.err != nil {
		return nil, &Error{Op: "recv", Endpoint: t.endpoint, Err: r.err}
	}
	return r.msg.Bytes(), nil
}

type recvResult struct {
	msg zmq4.Msg
	err error
}

// awaitReply waits for the receive to finish or ctx to end. A reply that is already
// there when ctx ends still wins, so a completed exchange never breaks the socket.
func awaitReply(ctx context.Context, done <-chan recvResult) (recvResult, error) {
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		select {
		case r := <-done:
			return r, nil
		default:
			return recvResult{}, fmt.Errorf("%w: %w", ErrBroken, ctx.Err())
		}
	}
}

// Endpoint returns the address the socket is connected to.
func (t *ReqTransport) Endpoint() string {
	return t.endpoint
}

// Close releases the socket. A RoundTrip blocked on a reply returns with an error.
func (t *ReqTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	err := t.socket.Close()
	t.cancel()
	return err
}
