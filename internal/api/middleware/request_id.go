package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/n2nstreams/saasfactory-cloud/pkg/telemetry/correlation"
)

const (
	requestIDHeader = "X-Request-ID"
	traceIDHeader   = "X-Trace-ID"
	spanIDHeader    = "X-Span-ID"
)

// RequestID attaches a request identifier to the context and response,
// reusing the caller's X-Request-ID when present so traces line up across
// services.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}

		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)

		ctx := correlation.WithCorrelationID(c.Request.Context(), id)
		ctx = correlation.WithRemoteSpan(ctx, c.GetHeader(traceIDHeader), c.GetHeader(spanIDHeader))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
