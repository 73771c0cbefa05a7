package domain

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const ContactMessageMaxLength = 5000

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Normalize trims surrounding whitespace from every field.
func (cm *ContactMessage) Normalize() {
	cm.Name = strings.TrimSpace(cm.Name)
	cm.Email = strings.TrimSpace(cm.Email)
	cm.Subject = strings.TrimSpace(cm.Subject)
	cm.Message = strings.TrimSpace(cm.Message)
}

func (cm *ContactMessage) Validate() error {
	return validation.ValidateStruct(cm,
		validation.Field(&cm.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&cm.Email, validation.Required, is.EmailFormat),
		validation.Field(&cm.Subject, validation.Length(0, 200)),
		validation.Field(&cm.Message, validation.Required, validation.Length(1, ContactMessageMaxLength)),
	)
}
