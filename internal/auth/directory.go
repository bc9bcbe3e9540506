// Package auth resolves opaque bearer tokens to principals and attaches the
// result to incoming connection upgrade requests.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/bookrelay/chat-relay-service/config"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
)

var (
	// ErrTokenNotFound means the token does not resolve to any principal.
	ErrTokenNotFound = errors.New("token not found")
	// ErrUserNotFound means no directory entry exists for the user id.
	ErrUserNotFound = errors.New("user not found")
)

// Directory is the token directory adapter: a pure lookup service keyed by
// opaque bearer tokens and principal ids. It never mutates anything.
type Directory interface {
	Resolve(ctx context.Context, token string) (model.Principal, error)
	Details(ctx context.Context, userID uuid.UUID) (model.UserDetails, error)
}

type staticEntry struct {
	principal model.Principal
	details   model.UserDetails
}

// StaticDirectory serves a fixed token table from memory. It backs
// standalone deployments and tests.
type StaticDirectory struct {
	byToken map[string]staticEntry
	byID    map[uuid.UUID]staticEntry
}

var _ Directory = (*StaticDirectory)(nil)

// NewStaticDirectory seeds the directory from configuration. Entries without
// a parseable id get a generated one.
func NewStaticDirectory(tokens map[string]config.StaticToken) *StaticDirectory {
	d := &StaticDirectory{
		byToken: make(map[string]staticEntry, len(tokens)),
		byID:    make(map[uuid.UUID]staticEntry, len(tokens)),
	}
	for token, t := range tokens {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			id = uuid.New()
		}
		entry := staticEntry{
			principal: model.Principal{
				ID:         id,
				Username:   t.Username,
				Privileged: t.Staff,
			},
			details: model.UserDetails{
				Username: t.Username,
				Email:    t.Email,
			},
		}
		d.byToken[token] = entry
		d.byID[id] = entry
	}
	return d
}

func (d *StaticDirectory) Resolve(_ context.Context, token string) (model.Principal, error) {
	entry, ok := d.byToken[token]
	if !ok {
		return model.Principal{}, ErrTokenNotFound
	}
	return entry.principal, nil
}

func (d *StaticDirectory) Details(_ context.Context, userID uuid.UUID) (model.UserDetails, error) {
	entry, ok := d.byID[userID]
	if !ok {
		return model.UserDetails{}, ErrUserNotFound
	}
	return entry.details, nil
}
