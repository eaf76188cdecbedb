package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/taix/internal/common"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags each HTTP request with an id, reusing the caller's when present.
func RequestID(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := common.WithRequestID(c.Request.Context(), requestID)
		ctx = common.WithLogger(ctx, logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Recovery middleware recovers from panics and logs the error
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := common.RequestIDFromContext(c.Request.Context())
				logger.Error("http.panic",
					"error", err,
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": requestID,
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs incoming requests and their responses
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := c.Writer.Status()
		attrs := []any{
			"status", code,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		}
		switch {
		case code >= 500:
			logger.Error("http.request", attrs...)
		case code >= 400:
			logger.Warn("http.request", attrs...)
		default:
			logger.Info("http.request", attrs...)
		}
	}
}

// UnaryInterceptor gives every RPC a request id and logger, logs the outcome,
// and turns panics into Internal.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				requestID = v[0]
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}
		reqLogger := logger.With("request_id", requestID, "method", info.FullMethod)
		ctx = common.WithLogger(common.WithRequestID(ctx, requestID), reqLogger)

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				reqLogger.Error("grpc.panic", "error", r, "stack", string(debug.Stack()))
				err = common.InternalError("internal server error")
			}
			reqLogger.Debug("grpc.request", "code", status.Code(err).String(), "elapsed_ms", time.Since(start).Milliseconds())
		}()
		return handler(ctx, req)
	}
}
