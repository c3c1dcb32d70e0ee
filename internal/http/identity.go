package http

import (
	"context"
	"net/http"

	"casa/internal/core"
	applog "casa/internal/log"
)

// Headers set by the authenticating reverse proxy.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

type userKey struct{}

// withIdentity attaches the proxy-asserted caller, if any, to the context and
// the request logger. It never rejects; requireUser does.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeInput(r.Header.Get(HeaderUserID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		user := core.User{
			ID:       id,
			FullName: sanitizeInput(r.Header.Get(HeaderUserName)),
			Email:    sanitizeInput(r.Header.Get(HeaderUserEmail)),
		}
		if email, err := core.NormalizeEmail(user.Email); err == nil {
			user.Email = email
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the caller attached by withIdentity.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey{}).(core.User)
	return u, ok
}

// userHandler is a handler that needs an authenticated caller.
type userHandler func(w http.ResponseWriter, r *http.Request, user core.User)

// requireUser answers 401 when the proxy did not identify the caller.
func requireUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			if isHTMX(r) {
				HTMLError(http.StatusUnauthorized, "Not signed in").Write(w)
				return
			}
			JSONError(http.StatusUnauthorized, "missing user identity").Write(w)
			return
		}
		h(w, r, user)
	}
}
