package auth

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"golang.org/x/sync/singleflight"
)

const cacheSize = 10000

// CachedDirectory decorates a Directory with an LRU cache plus singleflight
// deduplication, so a burst of connects with the same token costs one
// backend lookup. Only successful resolutions are cached; failures stay
// uncached so a token created moments later is picked up.
type CachedDirectory struct {
	next      Directory
	principal *lru.Cache[string, model.Principal]
	details   *lru.Cache[uuid.UUID, model.UserDetails]
	flight    singleflight.Group
}

var _ Directory = (*CachedDirectory)(nil)

func NewCachedDirectory(next Directory) *CachedDirectory {
	// [MEMORY_MANAGEMENT] Pre-sized LRU caches holding "hot" identities.
	principal, _ := lru.New[string, model.Principal](cacheSize)
	details, _ := lru.New[uuid.UUID, model.UserDetails](cacheSize)

	return &CachedDirectory{
		next:      next,
		principal: principal,
		details:   details,
	}
}

func (d *CachedDirectory) Resolve(ctx context.Context, token string) (model.Principal, error) {
	if cached, ok := d.principal.Get(token); ok {
		return cached, nil
	}

	res, err, _ := d.flight.Do("token:"+token, func() (any, error) {
		p, err := d.next.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		d.principal.Add(token, p)
		return p, nil
	})
	if err != nil {
		return model.Principal{}, err
	}
	return res.(model.Principal), nil
}

func (d *CachedDirectory) Details(ctx context.Context, userID uuid.UUID) (model.UserDetails, error) {
	if cached, ok := d.details.Get(userID); ok {
		return cached, nil
	}

	res, err, _ := d.flight.Do("user:"+userID.String(), func() (any, error) {
		det, err := d.next.Details(ctx, userID)
		if err != nil {
			return nil, err
		}
		d.details.Add(userID, det)
		return det, nil
	})
	if err != nil {
		return model.UserDetails{}, err
	}
	return res.(model.UserDetails), nil
}
