package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/dsvmender/internal/core"
)

// WithRequestMetadata carries the client IP into jobs started by the
// request, for their logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, clientIP(r))
}
