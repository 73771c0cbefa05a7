package mailer

import (
	"bytes"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/yuin/goldmark"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
)

type Config struct {
	From             string
	ContactRecipient string
	PublicURL        string
}

// Validate checks what every email needs: a sender and a base for links.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.From, validation.Required),
		validation.Field(&c.PublicURL, validation.Required, is.URL),
	)
}

// ValidateContact additionally requires somewhere to deliver contact form
// messages to.
func (c Config) ValidateContact() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ContactRecipient, validation.Required, is.EmailFormat),
	)
}

// Messages turns domain events into ready-to-send emails. Bodies are written
// in Markdown and rendered to HTML alongside the plain text part.
type Messages struct {
	cfg Config
	md  goldmark.Markdown
}

func NewMessages(cfg Config) *Messages {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Messages{cfg: cfg, md: goldmark.New()}
}

func (m *Messages) render(to []string, subject, body string) (*Email, error) {
	var html bytes.Buffer
	if err := m.md.Convert([]byte(body), &html); err != nil {
		return nil, fmt.Errorf("rendering %q: %w", subject, err)
	}

	return &Email{
		From:     m.cfg.From,
		To:       to,
		Subject:  subject,
		TextBody: body,
		HTMLBody: html.String(),
	}, nil
}

// Contact addresses a visitor's message to the site owner.
func (m *Messages) Contact(cm *domain.ContactMessage) (*Email, error) {
	if m.cfg.ContactRecipient == "" {
		return nil, fmt.Errorf("contact recipient: %w", ErrNotConfigured)
	}

	subject := cm.Subject
	if subject == "" {
		subject = "Nowa wiadomość z formularza kontaktowego"
	}
	subject = fmt.Sprintf("[kontakt] %s", subject)

	body := fmt.Sprintf("**Od:** %s <%s>\n\n%s\n", cm.Name, cm.Email, cm.Message)

	return m.render([]string{m.cfg.ContactRecipient}, subject, body)
}

func (m *Messages) ConfirmSubscription(sub *domain.Subscription) (*Email, error) {
	link := fmt.Sprintf("%s/api/newsletter/confirm/%s", m.cfg.PublicURL, sub.Token)
	body := fmt.Sprintf(
		"Dziękujemy za zapis do newslettera!\n\nPotwierdź adres, klikając [ten link](%s).\n\n"+
			"Jeśli to nie Ty, zignoruj tę wiadomość.\n",
		link,
	)

	return m.render([]string{sub.Email}, "Potwierdź zapis do newslettera", body)
}

func (m *Messages) Welcome(sub *domain.Subscription) (*Email, error) {
	body := fmt.Sprintf(
		"Witaj w newsletterze!\n\nOd teraz będziesz otrzymywać nasze porady treningowe i żywieniowe.\n\n"+
			"Wypisz się w dowolnej chwili: %s/api/newsletter/unsubscribe/%s\n",
		m.cfg.PublicURL, sub.Token,
	)

	return m.render([]string{sub.Email}, "Witaj w newsletterze", body)
}

// For returns the email a queued job should produce.
func (m *Messages) For(kind domain.EmailJobKind, sub *domain.Subscription) (*Email, error) {
	switch kind {
	case domain.ConfirmSubscriptionEmail:
		return m.ConfirmSubscription(sub)
	case domain.WelcomeEmail:
		return m.Welcome(sub)
	}

	return nil, fmt.Errorf("unknown email kind %q", kind)
}
