// Package server hosts the gRPC health service for vueswitch.
package server

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	middleware "github.com/tejusbharadwaj/vueswitch/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/vueswitch/internal/metrics"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
}

// SetupServer builds a gRPC server exposing health with all middleware.
func SetupServer(health *HealthChecker, config ServerConfig, collector *metrics.Collector, logger *logrus.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
				middleware.NewLoggingInterceptor(logger),
				middleware.NewMetricsInterceptor(collector),
			),
		),
	)

	grpc_health_v1.RegisterHealthServer(server, health)
	// for grpcurl
	reflection.Register(server)

	return server
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
