package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
)

const uniqueViolation = "23505"

type postgresSubscriptionRepository struct {
	conn Connection
}

func NewPostgresSubscription(conn Connection) domain.SubscriptionRepository {
	return &postgresSubscriptionRepository{conn: conn}
}

func (p *postgresSubscriptionRepository) fetch(ctx context.Context, query string, args ...interface{}) ([]domain.Subscription, error) {
	rows, err := p.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var confirmedAt pgtype.Timestamptz

		if err := rows.Scan(
			&sub.ID,
			&sub.Email,
			&sub.Token,
			&sub.CreatedAt,
			&confirmedAt,
		); err != nil {
			return nil, err
		}

		if confirmedAt.Valid {
			sub.ConfirmedAt = confirmedAt.Time
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (p *postgresSubscriptionRepository) getOne(ctx context.Context, query string, args ...interface{}) (domain.Subscription, error) {
	subs, err := p.fetch(ctx, query, args...)
	if err != nil {
		return domain.Subscription{}, err
	}
	if len(subs) == 0 {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return subs[0], nil
}

func (p *postgresSubscriptionRepository) GetByToken(ctx context.Context, token string) (domain.Subscription, error) {
	query := `
		SELECT id, email, token, created_at, confirmed_at
		FROM subscriptions
		WHERE token = $1`

	return p.getOne(ctx, query, token)
}

func (p *postgresSubscriptionRepository) GetByEmail(ctx context.Context, email string) (domain.Subscription, error) {
	query := `
		SELECT id, email, token, created_at, confirmed_at
		FROM subscriptions
		WHERE email = $1`

	sub := domain.Subscription{Email: email}
	return p.getOne(ctx, query, sub.NormalizedEmail())
}

func (p *postgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	sub.Email = sub.NormalizedEmail()
	if err := sub.Validate(); err != nil {
		return err
	}

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO subscriptions (email, token, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`

	err := p.conn.QueryRow(ctx, query, sub.Email, sub.Token, sub.CreatedAt).Scan(&sub.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrConflict
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrConflict
	}
	return err
}

func (p *postgresSubscriptionRepository) Confirm(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET confirmed_at = COALESCE(confirmed_at, $2)
		WHERE id = $1
		RETURNING confirmed_at`

	err := p.conn.QueryRow(ctx, query, sub.ID, time.Now().UTC()).Scan(&sub.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (p *postgresSubscriptionRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM subscriptions WHERE token = $1`

	res, err := p.conn.Exec(ctx, query, token)
	if err != nil {
		return err
	}

	switch res.RowsAffected() {
	case 0:
		return domain.ErrNotFound
	case 1:
		return nil
	}
	return fmt.Errorf("weird behaviour, total rows affected: %d", res.RowsAffected())
}

func (p *postgresSubscriptionRepository) Stats(ctx context.Context) (domain.SubscriptionStats, error) {
	query := `
		SELECT COUNT(*), COUNT(confirmed_at)
		FROM subscriptions`

	var stats domain.SubscriptionStats
	err := p.conn.QueryRow(ctx, query).Scan(&stats.Total, &stats.Confirmed)
	return stats, err
}

func (p *postgresSubscriptionRepository) PruneUnconfirmed(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM subscriptions
		WHERE confirmed_at IS NULL AND created_at < $1`

	res, err := p.conn.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
