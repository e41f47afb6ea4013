// Package middleware holds the gRPC interceptors of the service.
package middleware

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-product-dal/internal/auth"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// ContextInterceptor resolves the shop context from the request metadata
// once and stores it in the request context.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = auth.WithShopContext(ctx, auth.FromMetadata(md))
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its duration and outcome.
func LoggingInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		log.Debug("grpc call", fields...)
		return resp, nil
	}
}
