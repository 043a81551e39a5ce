package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const clientKey contextKey = "client"

// SetClient records the identity rate limits are scoped to.
func SetClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

func GetClient(r *http.Request) (string, bool) {
	client, ok := r.Context().Value(clientKey).(string)
	return client, ok && client != ""
}
