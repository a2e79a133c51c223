package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/pkg/logging"
)

// LoggingInterceptor logs every RPC call with its procedure, caller, duration
// and error code. Handlers find a logger carrying the same attributes through
// logging.FromContext.
//
// Install it after the auth interceptor so the caller is known.
func LoggingInterceptor(base *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			logger := base.With(
				"procedure", req.Spec().Procedure,
				"user", GetEmail(ctx), // empty if pre-auth
			)

			resp, err := next(logging.WithLogger(ctx, logger), req)

			duration := time.Since(start).Milliseconds()
			var connectErr *connect.Error
			switch {
			case err == nil:
				logger.Info("RPC ok", "duration_ms", duration)
			case errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal:
				logger.Warn("RPC error",
					"code", connectErr.Code(),
					"error", connectErr.Message(),
					"duration_ms", duration,
				)
			default:
				logger.Error("RPC error", "error", err, "duration_ms", duration)
			}

			return resp, err
		}
	}
}
