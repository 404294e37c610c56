package middleware

import (
	"context"
	"fmt"
	"smp2client/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles commands sent to the simulator with a token bucket.
// A call waits for a token; it fails only if ctx ends first.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
			return next(ctx, req)
		}
	}
}
