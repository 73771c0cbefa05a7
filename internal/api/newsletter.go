package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (a *api) enqueueEmail(ctx context.Context, kind domain.EmailJobKind, token string) error {
	payload, err := domain.EmailJob{Kind: kind, Token: token}.MarshalBinary()
	if err != nil {
		return err
	}
	return a.emails.PublishBytes(payload)
}

func (a *api) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &subscribeRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		a.logger.Info("failed to parse request json", zap.Error(err))
		a.errorResponse(w, r, http.StatusUnprocessableEntity, codeInvalidJSON, err.Error())
		return
	}

	token, err := uuid.NewV4()
	if err != nil {
		a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
		return
	}

	sub := &domain.Subscription{Email: req.Email, Token: token.String()}
	sub.Email = sub.NormalizedEmail()
	if err := sub.Validate(); err != nil {
		a.validationResponse(w, r, err)
		return
	}

	err = a.subscriptionRepo.Create(ctx, sub)
	if errors.Is(err, domain.ErrConflict) {
		// Signing up again answers the same way. An address that never got
		// confirmed gets its confirmation email again, in case the first one
		// was lost; the worker throttles how often that can happen.
		existing, gerr := a.subscriptionRepo.GetByEmail(ctx, sub.Email)
		if gerr != nil {
			a.logger.Error("failed to fetch existing subscription", zap.Error(gerr))
			a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
			return
		}
		if existing.Confirmed() {
			a.jsonResponse(w, http.StatusAccepted, statusResponse{"pending"})
			return
		}
		sub = &existing
	} else if err != nil {
		a.logger.Error("failed to store subscription", zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
		return
	}

	if err := a.enqueueEmail(ctx, domain.ConfirmSubscriptionEmail, sub.Token); err != nil {
		a.logger.Error("failed to enqueue confirmation email",
			zap.Error(err),
			zap.Int64("subscription#id", sub.ID),
		)
		a.errorResponse(w, r, http.StatusInternalServerError, codeSendFailed, sendFailedMessage)
		return
	}

	_ = a.statsd.Incr("newsletter.subscribed", []string{}, 1)
	a.jsonResponse(w, http.StatusAccepted, statusResponse{"pending"})
}

func (a *api) confirmSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := a.tokenVar(w, r)
	if !ok {
		return
	}

	sub, err := a.subscriptionRepo.GetByToken(ctx, token)
	if err != nil {
		a.subscriptionLookupError(w, r, err)
		return
	}

	if sub.Confirmed() {
		a.jsonResponse(w, http.StatusOK, statusResponse{"confirmed"})
		return
	}

	if err := a.subscriptionRepo.Confirm(ctx, &sub); err != nil {
		a.subscriptionLookupError(w, r, err)
		return
	}

	if err := a.enqueueEmail(ctx, domain.WelcomeEmail, sub.Token); err != nil {
		// The subscription is confirmed either way; only the welcome mail is lost.
		a.logger.Error("failed to enqueue welcome email",
			zap.Error(err),
			zap.Int64("subscription#id", sub.ID),
		)
	}

	_ = a.statsd.Incr("newsletter.confirmed", []string{}, 1)
	a.jsonResponse(w, http.StatusOK, statusResponse{"confirmed"})
}

func (a *api) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := a.tokenVar(w, r)
	if !ok {
		return
	}

	if err := a.subscriptionRepo.Delete(ctx, token); err != nil {
		a.subscriptionLookupError(w, r, err)
		return
	}

	_ = a.statsd.Incr("newsletter.unsubscribed", []string{}, 1)
	a.jsonResponse(w, http.StatusOK, statusResponse{"unsubscribed"})
}

// tokenVar answers 404 for anything that isn't a UUID, since no
// subscription can carry such a token.
func (a *api) tokenVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := uuid.FromString(mux.Vars(r)["token"])
	if err != nil {
		a.errorResponse(w, r, http.StatusNotFound, codeNotFound, "subscription not found")
		return "", false
	}
	return token.String(), true
}

func (a *api) subscriptionLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		a.errorResponse(w, r, http.StatusNotFound, codeNotFound, "subscription not found")
		return
	}

	a.logger.Error("failed to update subscription", zap.Error(err))
	a.errorResponse(w, r, http.StatusInternalServerError, codeInternal, "internal server error")
}
