package routes

import (
	"errors"
	"log"
	"net/http"

	"optimeal/auth"
	"optimeal/utils"

	"github.com/julienschmidt/httprouter"
)

// SignIn adopts the tokens returned by the login endpoint.
func SignIn(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var t auth.Tokens
		if err := utils.DecodeJSON(r, &t); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := b.Session.SignIn(t); err != nil {
			log.Printf("[Bridge] sign in rejected: %v", err)
			code := http.StatusBadRequest
			if errors.Is(err, auth.ErrTokenExpired) {
				code = http.StatusUnauthorized
			}
			utils.RespondWithError(w, code, err.Error())
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]any{"email": b.Session.Current()})
	}
}

// SignOut wipes every stored cart and drops the identity, which swaps the
// engine to the now empty anonymous cart.
func SignOut(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		b.Store.ClearAll(r.Context())
		b.Session.SignOut()
		w.WriteHeader(http.StatusNoContent)
	}
}

func CurrentSession(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		email := b.Session.Current()
		utils.RespondWithJSON(w, http.StatusOK, map[string]any{
			"signedIn": email != "",
			"email":    email,
		})
	}
}
