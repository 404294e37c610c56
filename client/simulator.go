package client

import (
	"context"
	"encoding/json"
	"smp2client/message"
)

// Method names understood by the simulator.
const (
	MethodRun          = "run"
	MethodHold         = "hold"
	MethodExit         = "exit"
	MethodHello        = "hello"
	MethodModelRequest = "model_request"
)

// Run moves the simulation from Standby to Executing.
func (c *Client) Run(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodRun, message.Params{})
}

// Resume continues a held simulation. SMP2 has no separate resume transition:
// Run is what leaves Standby, so Resume sends "run".
func (c *Client) Resume(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodRun, message.Params{})
}

// Hold moves the simulation from Executing to Standby.
func (c *Client) Hold(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodHold, message.Params{})
}

// Exit terminates the simulation.
func (c *Client) Exit(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodExit, message.Params{})
}

// Hello is the simulator's liveness probe; it answers "Hello, <name>.".
func (c *Client) Hello(ctx context.Context, name string) (json.RawMessage, error) {
	return c.Call(ctx, MethodHello, message.Params{"name": name})
}

// ModelRequest invokes operation on the named model. extra is merged on top of the
// fixed "operation" and "model" keys, so an extra key of the same name wins.
func (c *Client) ModelRequest(ctx context.Context, operation, model string, extra message.Params) (json.RawMessage, error) {
	return c.Call(ctx, MethodModelRequest, modelRequestParams(operation, model, extra))
}

func modelRequestParams(operation, model string, extra message.Params) message.Params {
	params := make(message.Params, len(extra)+2)
	params["operation"] = operation
	params["model"] = model
	for k, v := range extra {
		params[k] = v
	}
	return params
}
