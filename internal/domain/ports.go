package domain

import (
	"context"
	"time"
)

// ReviewStore is the transactional store behind the moderation pipeline.
type ReviewStore interface {
	// Read paths (no transaction)
	PropertyExists(ctx context.Context, id string) (bool, error)
	GetTop5(ctx context.Context, propertyID string) (PropertyTop5, error)
	ListPropertyIDs(ctx context.Context) ([]string, error)

	// WithTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back on any error or panic.
	WithTx(ctx context.Context, fn func(tx ReviewTx) error) error
}

// ReviewTx is only obtainable from ReviewStore.WithTx, so anything that
// takes one runs inside the caller's transaction.
type ReviewTx interface {
	CountRecentByAuthor(ctx context.Context, userName string, window time.Duration) (int, error)
	// LockProperty takes the property row lock that serializes writers of
	// one property's published set.
	LockProperty(ctx context.Context, propertyID string) error
	InsertReview(ctx context.Context, r Review) error
	GetReview(ctx context.Context, id string) (Review, error)
	// LockReview returns the owning property of a review and locks its row.
	LockReview(ctx context.Context, id string) (propertyID string, err error)
	MarkPublished(ctx context.Context, id string) error
	MaterializeTop5(ctx context.Context, propertyID string) error
	GetTop5(ctx context.Context, propertyID string) (PropertyTop5, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	// SetIfNewer stores v unless the key already holds a higher version.
	// It reports whether v was stored.
	SetIfNewer(ctx context.Context, key string, v any, version int64, ttlSec int) (bool, error)
	Del(ctx context.Context, key string) error
}
