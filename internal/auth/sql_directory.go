package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

// SQLDirectory reads tokens and user rows from Postgres. Lookups run behind
// a circuit breaker so a struggling database degrades connections to
// anonymous instead of piling up timed-out queries.
type SQLDirectory struct {
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker
}

var _ Directory = (*SQLDirectory)(nil)

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{
		db: db,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "token-directory",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// A missing row is a healthy answer, not a backend failure.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrUserNotFound)
			},
		}),
	}
}

const resolveQuery = `
SELECT u.id, u.username, u.is_staff
FROM auth_tokens t
JOIN users u ON u.id = t.user_id
WHERE t.key = $1`

func (d *SQLDirectory) Resolve(ctx context.Context, token string) (model.Principal, error) {
	res, err := d.breaker.Execute(func() (any, error) {
		var p model.Principal
		row := d.db.QueryRowContext(ctx, resolveQuery, token)
		if err := row.Scan(&p.ID, &p.Username, &p.Privileged); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrTokenNotFound
			}
			return nil, fmt.Errorf("token lookup: %w", err)
		}
		return p, nil
	})
	if err != nil {
		return model.Principal{}, err
	}
	return res.(model.Principal), nil
}

const detailsQuery = `
SELECT username, email
FROM users
WHERE id = $1`

func (d *SQLDirectory) Details(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	res, err := d.breaker.Execute(func() (any, error) {
		var det model.UserDetails
		row := d.db.QueryRowContext(ctx, detailsQuery, userID)
		if err := row.Scan(&det.Username, &det.Email); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("user lookup: %w", err)
		}
		return det, nil
	})
	if err != nil {
		return model.UserDetails{}, err
	}
	return res.(model.UserDetails), nil
}
