package middleware

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/vueswitch/internal/metrics"
)

// NewMetricsInterceptor counts requests per method and gRPC status code and
// records their latency per method.
func NewMetricsInterceptor(collector *metrics.Collector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := path.Base(info.FullMethod)
		collector.Requests.WithLabelValues(method, status.Code(err).String()).Inc()
		collector.Latency.WithLabelValues(method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}
