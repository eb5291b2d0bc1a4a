// Package middleware holds the Connect interceptors wrapped around the ledger
// service.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, owner, duration and error code.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			// Auth runs inside this interceptor, so the owner is only known
			// to handlers; the header presence is logged instead.
			authed := req.Header().Get("Authorization") != ""
			duration := time.Since(start).Milliseconds()
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					logger.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code().String(),
						"error", connectErr.Message(),
						"authenticated", authed,
						"duration_ms", duration,
					)
				} else {
					logger.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"authenticated", authed,
						"duration_ms", duration,
					)
				}
			} else {
				logger.Info("RPC ok",
					"procedure", procedure,
					"authenticated", authed,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
