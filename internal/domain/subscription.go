package domain

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const SubscriptionConfirmationWindow = 7 * 24 * time.Hour

type Subscription struct {
	ID          int64
	Email       string
	Token       string
	CreatedAt   time.Time
	ConfirmedAt time.Time
}

func (s *Subscription) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(s.Email))
}

func (s *Subscription) Confirmed() bool {
	return !s.ConfirmedAt.IsZero()
}

func (s *Subscription) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&s.Token, validation.Required, is.UUID),
	)
}

type SubscriptionStats struct {
	Total     int64
	Confirmed int64
}

type SubscriptionRepository interface {
	GetByToken(ctx context.Context, token string) (Subscription, error)
	GetByEmail(ctx context.Context, email string) (Subscription, error)

	Create(ctx context.Context, sub *Subscription) error
	Confirm(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, token string) error

	Stats(ctx context.Context) (SubscriptionStats, error)
	PruneUnconfirmed(ctx context.Context, before time.Time) (int64, error)
}
