package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/inventory/internal/core"
)

// requestContext adds the client address to the request context so
// service logs can name it. RemoteAddr is already rewritten by
// TrustedRealIP.
func requestContext(r *http.Request) context.Context {
	return core.ContextWithIPAddress(r.Context(), r.RemoteAddr)
}
