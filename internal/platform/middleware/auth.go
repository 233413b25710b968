package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"crboard/pkg/requestcontext"
)

// ActorHeader names the caller recorded on change events.
const ActorHeader = "X-Actor"

const defaultActor = "http"

// Actor stores the caller named by X-Actor in the context, defaulting to
// "http".
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = defaultActor
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
	})
}

// TokenVerifier checks a bearer token and returns the caller it names.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}

// RequireWriteToken rejects mutating requests that do not present a token
// accepted by tokens. GET, HEAD and OPTIONS pass through. The token subject
// replaces any X-Actor header. A nil verifier disables the check.
func RequireWriteToken(tokens TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || presented == "" {
				logger.WarnContext(ctx, "unauthorized write - missing token", "method", r.Method, "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}
			subject, err := tokens.Verify(presented)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized write - rejected token", "method", r.Method, "path", r.URL.Path, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, subject)))
		})
	}
}
