package domain

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type EmailJobKind string

const (
	ConfirmSubscriptionEmail EmailJobKind = "confirm"
	WelcomeEmail             EmailJobKind = "welcome"
)

// EmailJob is the payload published to the emails queue.
type EmailJob struct {
	Kind  EmailJobKind `json:"kind"`
	Token string       `json:"token"`
}

func (ej EmailJob) Validate() error {
	return validation.ValidateStruct(&ej,
		validation.Field(&ej.Kind, validation.Required, validation.In(ConfirmSubscriptionEmail, WelcomeEmail)),
		validation.Field(&ej.Token, validation.Required),
	)
}

func (ej EmailJob) MarshalBinary() ([]byte, error) {
	return json.Marshal(ej)
}
