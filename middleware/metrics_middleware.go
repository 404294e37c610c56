package middleware

import (
	"context"
	"fmt"
	"smp2client/message"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsMiddleware records per-method call counts, outcomes and latency in set.
// Pass nil to record into the process-wide default set.
//
//	smp2_client_calls_total{method="run"}
//	smp2_client_remote_errors_total{method="run"}
//	smp2_client_transport_errors_total{method="run"}
//	smp2_client_call_duration_seconds{method="run"}
func MetricsMiddleware(set *metrics.Set) Middleware {
	counter := metrics.GetOrCreateCounter
	histogram := metrics.GetOrCreateHistogram
	if set != nil {
		counter = set.GetOrCreateCounter
		histogram = set.GetOrCreateHistogram
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			counter(fmt.Sprintf(`smp2_client_calls_total{method=%q}`, req.Method)).Inc()
			histogram(fmt.Sprintf(`smp2_client_call_duration_seconds{method=%q}`, req.Method)).Update(time.Since(start).Seconds())
			switch {
			case err != nil:
				counter(fmt.Sprintf(`smp2_client_transport_errors_total{method=%q}`, req.Method)).Inc()
			case !resp.IsOk():
				counter(fmt.Sprintf(`smp2_client_remote_errors_total{method=%q}`, req.Method)).Inc()
			}
			return resp, err
		}
	}
}
