package api

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Shown to visitors whenever an email could not be sent or queued.
const sendFailedMessage = "Błąd podczas wysyłania wiadomości."

// Error codes travel in the X-Vitalpoint-Error header, which has to stay
// ASCII; the human readable message only goes in the body.
const (
	codeInvalidJSON  = "invalid_json"
	codeInvalidInput = "invalid_input"
	codeSendFailed   = "send_failed"
	codeNotFound     = "not_found"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal_error"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func (a *api) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (a *api) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set(errorHeader, code)
	a.jsonResponse(w, status, errorBody{Error: message})
}

func (a *api) validationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		a.errorResponse(w, r, http.StatusUnprocessableEntity, codeInvalidInput, err.Error())
		return
	}

	w.Header().Set(errorHeader, codeInvalidInput)
	a.jsonResponse(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid request", Fields: verrs})
}
