package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing returns otelgin followed by a handler that tags the request span
// with the caller and request id once the chain has run. otelgin restores the
// original request context on return, so the tagging has to happen inside it.
func Tracing(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), annotateSpan}
}

func annotateSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	c.Next()

	if !span.IsRecording() {
		return
	}
	if userID := util.OptionalUserID(c); userID != "" {
		span.SetAttributes(attribute.String("user.id", userID))
	}
	if requestID := c.GetString(RequestIDKey); requestID != "" {
		span.SetAttributes(attribute.String("request.id", requestID))
	}
	for _, ginErr := range c.Errors {
		span.RecordError(ginErr.Err)
		span.SetStatus(codes.Error, ginErr.Error())
	}
}
