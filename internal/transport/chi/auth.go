package chi

import (
	"net/http"
	"strings"

	logpkg "github.com/kailas-cloud/edasearch/internal/logger"
)

// UserHeader carries the opaque caller identity set by the upstream gateway.
const UserHeader = "X-User-ID"

// publicPaths skip the API key check; the caller identity is still resolved.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// apiKeys maps a key to the caller it is bound to ("" when unbound).
type apiKeys map[string]string

// parseAPIKeys reads "caller=key" or bare "key" entries. Empty entries are ignored.
func parseAPIKeys(entries []string) apiKeys {
	keys := make(apiKeys, len(entries))
	for _, e := range entries {
		caller, key, bound := strings.Cut(e, "=")
		if !bound {
			caller, key = "", e
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys[key] = strings.TrimSpace(caller)
	}
	return keys
}

// AuthMiddleware checks the bearer API key (when keys are configured) and
// stores the caller identity in the request context. A key bound to a caller
// name decides the identity; otherwise the gateway's X-User-ID header does.
func AuthMiddleware(entries []string) func(http.Handler) http.Handler {
	keys := parseAPIKeys(entries)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(UserHeader))

			if _, public := publicPaths[r.URL.Path]; !public && len(keys) > 0 {
				caller, msg, ok := keys.authenticate(r.Header.Get("Authorization"))
				if !ok {
					writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
					return
				}
				if caller != "" {
					user = caller
				}
			}

			next.ServeHTTP(w, r.WithContext(logpkg.ContextWithUser(r.Context(), user)))
		})
	}
}

func (k apiKeys) authenticate(header string) (caller, msg string, ok bool) {
	if header == "" {
		return "", "missing authorization header", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", "authorization header must use Bearer scheme", false
	}
	caller, ok = k[token]
	if !ok {
		return "", "invalid api key", false
	}
	return caller, "", true
}
