package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/auth"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/omnipos.dal.v1.EntityService/Read"}

func TestContextInterceptor(t *testing.T) {
	language := "2fbb5fe2-e29a-4d70-8e6a-dcad1e32a6f1"
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(auth.MetadataLanguageID, language))

	var got string
	_, err := ContextInterceptor()(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		got = auth.ShopContext(ctx).LanguageID
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != language {
		t.Fatalf("expected language %q, got %q", language, got)
	}

	_, err = ContextInterceptor()(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		got = auth.ShopContext(ctx).LanguageID
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Fatalf("expected the default language without metadata")
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := LoggingInterceptor(logger.Wrap(zap.New(core)))

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("expected the handler response, got %v (%v)", resp, err)
	}

	callErr := errors.New("boom")
	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, callErr
	})
	if !errors.Is(err, callErr) {
		t.Fatalf("expected the handler error, got %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels: %v, %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["method"] != info.FullMethod {
		t.Fatalf("expected the method to be logged, got %v", entries[1].ContextMap())
	}
}
