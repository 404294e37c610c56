package codec

import (
	"errors"
	"fmt"
	"smp2client/message"
)

// ErrInvalidResponse is returned when a reply cannot be read as a JSON-RPC response.
var ErrInvalidResponse = errors.New("invalid JSON-RPC response")

// ErrInvalidRequest is returned when a payload cannot be read as a JSON-RPC request.
var ErrInvalidRequest = errors.New("invalid JSON-RPC request")

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Default is the codec the simulator speaks.
var Default Codec = &JSONCodec{}

// EncodeRequest serializes a request envelope.
func EncodeRequest(c Codec, req *message.Request) ([]byte, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("%w: empty method", ErrInvalidRequest)
	}
	return c.Encode(req)
}

// DecodeResponse parses a reply into the Ok/Error discriminated result.
// The simulator answers with an empty message when it fails internally, so an
// empty payload is reported as an invalid response rather than a parse error.
func DecodeResponse(c Codec, data []byte) (*message.Response, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrInvalidResponse)
	}

	resp := &message.Response{}
	if err := c.Decode(data, resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	switch {
	case resp.Result == nil && resp.Error == nil:
		return nil, fmt.Errorf("%w: neither result nor error present", ErrInvalidResponse)
	case resp.Result != nil && resp.Error != nil:
		return nil, fmt.Errorf("%w: both result and error present", ErrInvalidResponse)
	}
	return resp, nil
}

// DecodeRequest parses a request envelope. Used by the simulator side.
func DecodeRequest(c Codec, data []byte) (*message.Request, error) {
	req := &message.Request{}
	if err := c.Decode(data, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: empty method", ErrInvalidRequest)
	}
	return req, nil
}

// EncodeResponse serializes a reply envelope. Used by the simulator side.
func EncodeResponse(c Codec, resp *message.Response) ([]byte, error) {
	if resp.JSONRPC == "" {
		resp.JSONRPC = message.Version
	}
	return c.Encode(resp)
}
