package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/vueswitch/internal/metrics"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestContextMiddlewareSetsRequestID(t *testing.T) {
	var seen string
	_, err := ContextMiddleware(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Empty(t, RequestID(context.Background()))
}

func TestRateLimitingInterceptor(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(0.001, 2)

	for i := 0; i < 2; i++ {
		resp, err := interceptor(context.Background(), nil, info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	}

	_, err := interceptor(context.Background(), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	interceptor := NewLoggingInterceptor(logger)

	_, err := interceptor(context.Background(), nil, info, okHandler)
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, info.FullMethod, hook.LastEntry().Data["method"])

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	require.Error(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestMetricsInterceptorLabelsStatusCode(t *testing.T) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	interceptor := NewMetricsInterceptor(collector)

	_, err = interceptor(context.Background(), nil, info, okHandler)
	require.NoError(t, err)

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Requests.WithLabelValues("Check", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Requests.WithLabelValues("Check", "NotFound")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.Latency))
}
