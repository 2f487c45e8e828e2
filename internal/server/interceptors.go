package server

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/metrics"
)

// Metadata keys read from incoming calls.
const (
	MetadataActorID   = "x-actor-id"
	MetadataRequestID = "x-request-id"
)

// UnaryInterceptor carries actor and request ids from metadata into the
// context, maps handler errors onto gRPC status codes, and records metrics.
func UnaryInterceptor(logger *slog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = withCallerIDs(ctx)
		method := path.Base(info.FullMethod)

		resp, err := callHandler(ctx, req, handler, method, logger)
		err = common.ToStatus(err)

		code := status.Code(err)
		elapsed := time.Since(start)
		m.ObserveGRPC(method, code.String(), elapsed)
		attrs := []any{
			"method", method,
			"code", code.String(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", common.RequestIDFromContext(ctx),
			"actor_id", common.ActorIDFromContext(ctx),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(attrs, "error", err)...)
			return nil, err
		}
		logger.Info("grpc call", attrs...)
		return resp, nil
	}
}

// callHandler turns a handler panic into an internal error so one bad request
// cannot take the server down.
func callHandler(ctx context.Context, req any, handler grpc.UnaryHandler, method string, logger *slog.Logger) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc handler panicked", "method", method, "panic", r, "stack", string(debug.Stack()))
			resp, err = nil, fmt.Errorf("%w: %s panicked", common.ErrInternal, method)
		}
	}()
	return handler(ctx, req)
}

func withCallerIDs(ctx context.Context) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := first(md, MetadataActorID); v != "" {
		ctx = common.WithActorID(ctx, v)
	}
	requestID := first(md, MetadataRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return common.WithRequestID(ctx, requestID)
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
