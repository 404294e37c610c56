// Package message defines the JSON-RPC 2.0 envelopes exchanged with the simulator.
//
// A Request is built fresh for every call, serialized by the codec layer and sent as a
// single ZeroMQ message. The simulator answers with exactly one Response, which is either
// Ok (Result set) or Error (Error set), never both.
//
//	→ {"jsonrpc":"2.0","method":"model_request","params":{"model":"counter1","operation":"reset"},"id":1}
//	← {"jsonrpc":"2.0","result":"success","id":1}
//	← {"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":1}
package message

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version the simulator speaks.
const Version = "2.0"

// Standard JSON-RPC error codes, as produced by the simulator's jsonrpc layer.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Params is the named parameter mapping of a request.
type Params map[string]any

// Request carries a single remote method call.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
	ID      int64  `json:"id"`
}

// NewRequest builds a request envelope. A nil params mapping is sent as an empty object.
func NewRequest(method string, params Params, id int64) *Request {
	if params == nil {
		params = Params{}
	}
	return &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// Response is the discriminated reply: Ok when Error is nil, Error otherwise.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// IsOk reports whether the reply carries a result.
func (r *Response) IsOk() bool {
	return r.Error == nil
}

// Error is the error object of a failed call.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RemoteError is returned when the simulator answers with an error discriminant.
type RemoteError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d calling %q: %s", e.Code, e.Method, e.Message)
}

// AsRemoteError converts the error object of a reply to a Go error.
func (e *Error) AsRemoteError(method string) *RemoteError {
	return &RemoteError{
		Method:  method,
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}
}
