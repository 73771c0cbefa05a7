package api

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// corsMaxAge is the longest preflight cache gorilla/handlers allows.
const corsMaxAge = 600

// cors lets any origin call the API and answers preflight requests before
// routing, since the router only knows the methods each route serves.
func cors(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.MaxAge(corsMaxAge),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(next)
}
