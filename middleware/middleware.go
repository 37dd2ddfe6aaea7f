package middleware

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type ctxKey struct{}

// Identity is the signed-in user as the bridge sees it.
type Identity interface {
	Current() string
}

// Authenticate rejects requests while nobody is signed in and stores the
// identity in the request context. Websocket upgrades are held to the same
// rule.
func Authenticate(id Identity) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			email := id.Current()
			if email == "" {
				http.Error(w, "Not signed in", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, email)
			next(w, r.WithContext(ctx), ps)
		}
	}
}

// IdentityFrom returns the identity Authenticate stored, or "".
func IdentityFrom(ctx context.Context) string {
	email, _ := ctx.Value(ctxKey{}).(string)
	return email
}
