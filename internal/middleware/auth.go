package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"repairchat/internal/auth"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	"repairchat/internal/httputil"
)

// Authenticate resolves the caller of every request. No Authorization
// header makes the caller a guest; a bearer token that does not verify is
// rejected with 401 rather than downgraded to guest. verifier may be nil, in
// which case every bearer token is rejected.
func Authenticate(verifier auth.JWTVerifier, proxies ProxyPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIdentity := ClientIdentity(r, proxies)

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, httputil.WithActor(r, models.GuestActor(clientIdentity)))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "authorization header must be a bearer token", nil)
				return
			}
			if verifier == nil {
				httputil.RespondError(w, http.StatusUnauthorized, "authentication is not configured", nil)
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("bearer token rejected", "path", r.URL.Path, "client_identity", clientIdentity)
				httputil.RespondDomainError(w, domain.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, httputil.WithActor(r, models.UserActor(claims.GetUserID(), clientIdentity)))
		})
	}
}

// RequireUser rejects guests with 401
func RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if httputil.GetActor(r).IsGuest() {
			httputil.RespondError(w, http.StatusUnauthorized, "sign in required", nil)
			return
		}
		next(w, r)
	}
}
