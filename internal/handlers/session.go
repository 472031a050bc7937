package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/a-h/templ"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/observability"
	"sales-explorer/internal/services"
	"sales-explorer/internal/session"
)

// analyticsFrom returns the analytics of the caller's session. The session
// middleware must run before any handler of this package.
func analyticsFrom(r *http.Request) (*services.Analytics, error) {
	a, ok := session.FromContext(r.Context())
	if !ok {
		return nil, errors.Internal("No session attached to the request")
	}
	return a, nil
}

func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}

func requestID(r *http.Request) string {
	return observability.GetRequestID(r.Context())
}

func renderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
