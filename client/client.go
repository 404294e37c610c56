// Package client is the RPC client of the SMP2 simulator.
//
// A Client owns one request/reply connection and turns each method call into exactly
// one JSON-RPC exchange:
//
//	Call → middleware chain → encode → RoundTrip (send, block for one reply) → decode
//
// Error replies from the simulator are logged and reported as "no value" by Call;
// Invoke returns them as *message.RemoteError instead. Transport failures are always
// returned.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"smp2client/codec"
	"smp2client/message"
	"smp2client/middleware"
	"smp2client/transport"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 5050
)

// ErrEmptyMethod is returned when a call names no method; nothing is sent.
var ErrEmptyMethod = errors.New("empty method name")

type Client struct {
	transport   transport.RoundTripper
	codec       codec.Codec
	logger      *zap.Logger
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(send)))
	nextID      atomic.Int64
}

type Option func(*Client)

// WithLogger sets the sink for remote error reports. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMiddleware appends middlewares; the first one added is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithCodec replaces the wire codec.
func WithCodec(cdc codec.Codec) Option {
	return func(c *Client) {
		c.codec = cdc
	}
}

// NewClient wraps an already connected transport. The client owns it from now on.
func NewClient(t transport.RoundTripper, opts ...Option) *Client {
	c := &Client{
		transport: t,
		codec:     codec.Default,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Build the chain once, not per call
	c.handler = middleware.Chain(c.middlewares...)(c.send)
	c.logger.Debug("client ready",
		zap.String("endpoint", t.Endpoint()),
		zap.String("codec", c.codec.Name()),
		zap.Int("middlewares", len(c.middlewares)),
	)
	return c
}

// Dial connects to the simulator at host:port.
func Dial(host string, port int, opts ...Option) (*Client, error) {
	return DialEndpoint(transport.Endpoint(host, port), opts...)
}

// DialEndpoint connects to a ZeroMQ endpoint such as "tcp://localhost:5050".
func DialEndpoint(endpoint string, opts ...Option) (*Client, error) {
	t, err := transport.DialReq(endpoint, 250*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return NewClient(t, opts...), nil
}

// Endpoint returns the address the client is connected to.
func (c *Client) Endpoint() string {
	return c.transport.Endpoint()
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Invoke performs one call and returns the result payload unchanged.
// An error reply is returned as *message.RemoteError.
func (c *Client) Invoke(ctx context.Context, method string, params message.Params) (json.RawMessage, error) {
	if method == "" {
		return nil, ErrEmptyMethod
	}

	req := message.NewRequest(method, params, c.nextID.Add(1))
	resp, err := c.handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsOk() {
		return nil, resp.Error.AsRemoteError(method)
	}
	return resp.Result, nil
}

// Call performs one call. An error reply is logged and yields no value and no error;
// only local and transport failures are returned.
func (c *Client) Call(ctx context.Context, method string, params message.Params) (json.RawMessage, error) {
	result, err := c.Invoke(ctx, method, params)

	var remote *message.RemoteError
	if errors.As(err, &remote) {
		c.logger.Error(remote.Message,
			zap.String("method", remote.Method),
			zap.Int("code", remote.Code),
			zap.String("endpoint", c.transport.Endpoint()),
		)
		return nil, nil
	}
	return result, err
}

// send is the innermost handler: encode, exchange, decode.
func (c *Client) send(ctx context.Context, req *message.Request) (*message.Response, error) {
	body, err := codec.EncodeRequest(c.codec, req)
	if err != nil {
		return nil, err
	}

	reply, err := c.transport.RoundTrip(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := codec.DecodeResponse(c.codec, reply)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}
	return resp, nil
}
