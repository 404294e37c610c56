// Package middleware wraps the client's call path.
//
// Every call goes through the chain before it reaches the transport:
//
//	Chain(A, B, C)(send) → A(B(C(send)))
//	A.before → B.before → C.before → send → C.after → B.after → A.after
//
// A handler returns the decoded response (Ok or Error) or a local/transport error.
package middleware

import (
	"context"
	"smp2client/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
