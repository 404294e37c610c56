// Package simtest provides an in-process stand-in for the SMP2 simulator's RPC endpoint.
//
// It binds a ZeroMQ REP socket and answers JSON-RPC requests the way the simulator
// does: registered methods reply with a result or an error object, unknown methods
// reply with "Method not found", and methods marked with Fail reply with an empty
// message (the simulator's behaviour after an internal exception). Every request is
// recorded so tests can assert on the exact wire shape.
//
//	Recv → DecodeRequest → record → handler → EncodeResponse → Send
package simtest

import (
	"context"
	"encoding/json"
	"fmt"
	"smp2client/codec"
	"smp2client/message"
	"strconv"
	"sync"

	"github.com/go-zeromq/zmq4"
)

// HandlerFunc answers one request with a result or an error object.
type HandlerFunc func(params message.Params) (any, *message.Error)

// Simulator is a fake simulator RPC endpoint.
type Simulator struct {
	socket   zmq4.Socket
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	failing  map[string]bool
	received [][]byte
}

// New creates a simulator answering "hello" and "model_request" like the real one.
func New() *Simulator {
	s := &Simulator{
		handlers: make(map[string]HandlerFunc),
		failing:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	s.Handle("hello", func(params message.Params) (any, *message.Error) {
		return fmt.Sprintf("Hello, %v.", params["name"]), nil
	})
	s.Handle("model_request", func(params message.Params) (any, *message.Error) {
		if _, ok := params["model"].(string); !ok {
			return nil, &message.Error{Code: message.CodeInvalidParams, Message: "Invalid params: model"}
		}
		if _, ok := params["operation"].(string); !ok {
			return nil, &message.Error{Code: message.CodeInvalidParams, Message: "Invalid params: operation"}
		}
		return "success", nil
	})
	return s
}

// Handle registers or replaces the handler of a method.
func (s *Simulator) Handle(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Fail makes the simulator answer method with an empty message.
func (s *Simulator) Fail(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = true
}

// Start binds the REP socket to endpoint (e.g. "tcp://127.0.0.1:0") and serves in
// the background until Close.
func (s *Simulator) Start(endpoint string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.socket = zmq4.NewRep(ctx)
	if err := s.socket.Listen(endpoint); err != nil {
		cancel()
		return fmt.Errorf("listen %s: %w", endpoint, err)
	}
	go s.serve()
	return nil
}

// Endpoint returns the tcp:// address clients should connect to.
func (s *Simulator) Endpoint() string {
	return "tcp://" + s.socket.Addr().String()
}

// Addr returns the bound host:port.
func (s *Simulator) Addr() string {
	return s.socket.Addr().String()
}

// Received returns the raw request payloads seen so far, in arrival order.
func (s *Simulator) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

// Requests returns the decoded requests seen so far.
func (s *Simulator) Requests() []*message.Request {
	var out []*message.Request
	for _, raw := range s.Received() {
		if req, err := codec.DecodeRequest(codec.Default, raw); err == nil {
			out = append(out, req)
		}
	}
	return out
}

// Close stops serving and releases the socket.
func (s *Simulator) Close() error {
	err := s.socket.Close()
	s.cancel()
	<-s.done
	return err
}

func (s *Simulator) serve() {
	defer close(s.done)
	for {
		msg, err := s.socket.Recv()
		if err != nil {
			return // socket closed
		}
		reply := s.handle(msg.Bytes())
		if err := s.socket.Send(zmq4.NewMsg(reply)); err != nil {
			return
		}
	}
}

func (s *Simulator) handle(payload []byte) []byte {
	s.mu.Lock()
	s.received = append(s.received, append([]byte(nil), payload...))
	s.mu.Unlock()

	req, err := codec.DecodeRequest(codec.Default, payload)
	if err != nil {
		return s.encode(&message.Response{
			Error: &message.Error{Code: message.CodeParseError, Message: "Parse error"},
			ID:    json.RawMessage("null"),
		})
	}
	id := json.RawMessage(strconv.FormatInt(req.ID, 10))

	s.mu.Lock()
	handler, ok := s.handlers[req.Method]
	failing := s.failing[req.Method]
	s.mu.Unlock()

	if failing {
		return []byte{}
	}
	if !ok {
		return s.encode(&message.Response{
			Error: &message.Error{Code: message.CodeMethodNotFound, Message: "Method not found: " + req.Method},
			ID:    id,
		})
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		return s.encode(&message.Response{Error: rpcErr, ID: id})
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return s.encode(&message.Response{
			Error: &message.Error{Code: message.CodeInternalError, Message: err.Error()},
			ID:    id,
		})
	}
	return s.encode(&message.Response{Result: raw, ID: id})
}

func (s *Simulator) encode(resp *message.Response) []byte {
	data, err := codec.EncodeResponse(codec.Default, resp)
	if err != nil {
		return []byte{}
	}
	return data
}
