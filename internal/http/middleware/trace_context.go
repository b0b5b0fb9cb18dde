package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/surveytrends-backend/internal/platform/ctxutil"
)

const (
	headerTraceID        = "X-Trace-Id"
	headerRequestID      = "X-Request-Id"
	headerIdempotencyKey = "Idempotency-Key"
)

// AttachTraceContext tags the request context with ids the request log and
// services attach to their entries. The trace id prefers the otel span so
// logs join up with exported traces.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tags := &ctxutil.RequestTags{
			RequestID:      strings.TrimSpace(c.GetHeader(headerRequestID)),
			IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
		}
		if tags.RequestID == "" {
			tags.RequestID = uuid.NewString()
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			tags.TraceID = sc.TraceID().String()
		} else if tags.TraceID = strings.TrimSpace(c.GetHeader(headerTraceID)); tags.TraceID == "" {
			tags.TraceID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(ctxutil.WithRequestTags(c.Request.Context(), tags))
		c.Header(headerTraceID, tags.TraceID)
		c.Header(headerRequestID, tags.RequestID)
		c.Next()
	}
}
