package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
)

func (a *api) contactHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cm := &domain.ContactMessage{}
	if err := json.NewDecoder(r.Body).Decode(cm); err != nil {
		a.logger.Info("failed to parse request json", zap.Error(err))
		a.errorResponse(w, r, http.StatusUnprocessableEntity, codeInvalidJSON, err.Error())
		return
	}

	cm.Normalize()
	if err := cm.Validate(); err != nil {
		a.validationResponse(w, r, err)
		return
	}

	email, err := a.messages.Contact(cm)
	if err != nil {
		a.logger.Error("failed to build contact email", zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
		return
	}

	res, err := a.sender.Send(ctx, email)
	if err != nil {
		_ = a.statsd.Incr("email.errors", []string{"kind:contact"}, 1)
		a.logger.Error("failed to send contact email", zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
		return
	}

	_ = a.statsd.Incr("email.sent", []string{"kind:contact"}, 1)
	a.jsonResponse(w, http.StatusOK, res)
}
