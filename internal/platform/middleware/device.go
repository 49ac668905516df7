package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDevice struct{}

var ContextKeyDevice = contextKeyDevice{}

// Device parses the User-Agent header into a short device summary and stores
// it in the request context. The SOS path records the summary on incidents so
// an exported record shows which device raised the alert.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary := summarizeUserAgent(r.Header.Get("User-Agent"))
		ctx := context.WithValue(r.Context(), ContextKeyDevice, summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDevice retrieves the device summary from the context.
func GetDevice(ctx context.Context) string {
	device, ok := ctx.Value(ContextKeyDevice).(string)
	if !ok {
		return ""
	}
	return device
}

func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)

	parts := make([]string, 0, 3)
	if name, version := ua.Browser(); name != "" {
		if version != "" {
			parts = append(parts, name+" "+version)
		} else {
			parts = append(parts, name)
		}
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, "; ")
}
