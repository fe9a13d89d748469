package auth

import (
	"net/http"

	"github.com/MRAMOS343/moncar-api/internal/platform/httpx"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Verify(BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="moncar"`)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects callers whose role is not in the allowed list.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, ErrMissingToken)
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permisos insuficientes")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BranchScope returns the branch a caller is restricted to, or "" when the
// caller may read every branch.
func BranchScope(p shared.Principal) string {
	if p.Role == RoleAdmin || p.Role == RoleSync {
		return ""
	}
	return p.BranchID
}
