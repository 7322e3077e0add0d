package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-Id"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// LoggingInterceptor tags each call with a request id and logs its outcome.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			ctx = withRequestID(ctx, id)

			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"request_id", id,
				"duration", time.Since(start),
			}
			if err != nil {
				attrs = append(attrs, "code", connect.CodeOf(err).String(), "error", err)
				logger.Info("rpc failed", attrs...)
				if cerr, ok := err.(*connect.Error); ok {
					cerr.Meta().Set(RequestIDHeader, id)
				}
				return nil, err
			}
			logger.Debug("rpc handled", attrs...)
			resp.Header().Set(RequestIDHeader, id)
			return resp, nil
		}
	}
}

// RecoverHandler converts a panic in a procedure into an Internal error.
func RecoverHandler(logger *slog.Logger) func(context.Context, connect.Spec, http.Header, any) error {
	return func(ctx context.Context, spec connect.Spec, _ http.Header, p any) error {
		id, _ := RequestID(ctx)
		logger.Error("panic in handler", "procedure", spec.Procedure, "request_id", id, "panic", p)
		return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
	}
}
