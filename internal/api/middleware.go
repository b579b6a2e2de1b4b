package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/codecollab-io/codecollab/internal/stats"
)

func (s *CollabApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter since the browser WebSocket API
// cannot set headers on the upgrade request.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return token
	}

	return r.URL.Query().Get("token")
}

// authMiddleware is the connection gate: no request reaches a protected
// handler, including the websocket upgrade, without a verified identity.
func (s *CollabApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			s.stats.Incr(stats.AuthRejected)
			s.log.Printf("rejected %s: no token", r.RemoteAddr)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		username, err := s.identityFromToken(tokenString)
		if err != nil {
			s.stats.Incr(stats.AuthRejected)
			s.log.Printf("rejected %s: %v", r.RemoteAddr, err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.log.Printf("accepted %q from %s", username, r.RemoteAddr)

		ctx := WithIdentity(r.Context(), username)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
