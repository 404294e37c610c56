package middleware

import (
	"context"
	"smp2client/message"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every call at debug level and failed calls at warn level.
// Remote error replies are left to the client, which reports them itself.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.Int64("id", req.ID),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("rpc call failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("rpc call", append(fields, zap.Bool("ok", resp.IsOk()))...)
			return resp, nil
		}
	}
}
