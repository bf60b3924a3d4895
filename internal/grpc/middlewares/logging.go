package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func NewLoggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		entry := logger.WithFields(logrus.Fields{
			"request_id": RequestID(ctx),
			"method":     info.FullMethod,
			"duration":   time.Since(start).String(),
		})
		if err != nil {
			entry.WithField("error", err).Warn("gRPC request failed")
		} else {
			entry.Debug("gRPC request")
		}

		return resp, err
	}
}
