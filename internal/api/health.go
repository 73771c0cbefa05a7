package api

import (
	"net/http"
)

func (a *api) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status": "available",
	}

	a.jsonResponse(w, http.StatusOK, data)
}
