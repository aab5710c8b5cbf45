package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"letter-portal/api/response"
	"letter-portal/logic/routing"
	"letter-portal/pkg/metrics"
	"letter-portal/types"
	"letter-portal/vars"
)

type RequestMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewRequestMiddleware(logger *zap.Logger, mc *metrics.MetricsCollector) *RequestMiddleware {
	return &RequestMiddleware{
		logger:  logger,
		metrics: mc,
	}
}

// ProcessRequest 为每个请求分配 request id, 记录操作人, 并输出访问日志
func (rm *RequestMiddleware) ProcessRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(vars.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		actor := strings.TrimSpace(c.GetHeader(vars.HeaderActorID))

		ctx := types.WithRequestID(c.Request.Context(), requestID)
		if actor != "" {
			ctx = types.WithActor(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(vars.HeaderRequestID, requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rm.metrics.IncrementCounter("http_requests", http.StatusText(c.Writer.Status()))
		rm.metrics.ObserveLatency("http "+c.Request.Method+" "+route, duration)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor != "" {
			fields = append(fields, zap.String("actor", actor))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			rm.logger.Error("HTTP Request", fields...)
			return
		}
		rm.logger.Info("HTTP Request", fields...)
	}
}

func (rm *RequestMiddleware) RecoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rm.logger.Error("Panic recovered",
					zap.String("request_id", types.RequestID(c.Request.Context())),
					zap.Any("error", err),
					zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code:  -1,
					Msg:   "internal error",
					Error: string(routing.CodeInternal),
				})
			}
		}()
		c.Next()
	}
}
