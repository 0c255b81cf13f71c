package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"property_reviews/internal/adapters/observability"
	"property_reviews/internal/domain"
)

// Tx is the store's view of one open transaction. It is only handed out by
// Repo.WithTx.
type Tx struct{ tx *sql.Tx }

var _ domain.ReviewTx = (*Tx)(nil)

func (t *Tx) CountRecentByAuthor(ctx context.Context, userName string, window time.Duration) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, countRecentByAuthorSQL, userName, window.Microseconds()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tx) LockProperty(ctx context.Context, propertyID string) error {
	var id string
	if err := t.tx.QueryRowContext(ctx, lockPropertySQL, propertyID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (t *Tx) InsertReview(ctx context.Context, r domain.Review) error {
	structured, err := encodeStructured(r.Structured)
	if err != nil {
		return fmt.Errorf("encode structured: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, insertReviewSQL,
		r.ID,
		r.PropertyID,
		r.UserName,
		r.OverallRating,
		structured,
		r.Body,
		string(r.Status),
	)
	return err
}

func (t *Tx) GetReview(ctx context.Context, id string) (domain.Review, error) {
	var rv domain.Review
	var structured []byte
	var status string
	err := t.tx.QueryRowContext(ctx, getReviewSQL, id).Scan(
		&rv.ID,
		&rv.PropertyID,
		&rv.UserName,
		&rv.OverallRating,
		&structured,
		&rv.Body,
		&status,
		&rv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, err
	}
	if rv.Structured, err = decodeStructured(structured); err != nil {
		return domain.Review{}, fmt.Errorf("decode structured for %s: %w", id, err)
	}
	rv.Status = domain.Status(status)
	return rv, nil
}

func (t *Tx) LockReview(ctx context.Context, id string) (string, error) {
	var propertyID string
	if err := t.tx.QueryRowContext(ctx, lockReviewSQL, id).Scan(&propertyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return propertyID, nil
}

func (t *Tx) MarkPublished(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, markPublishedSQL, id)
	return err
}

// MaterializeTop5 overwrites the property's top_5_reviews with the newest
// published reviews, read inside this transaction. The result depends only
// on the published set, so repeating it is a no-op.
func (t *Tx) MaterializeTop5(ctx context.Context, propertyID string) (err error) {
	defer func() { observability.ObserveMaterialization(err) }()

	if err := t.LockProperty(ctx, propertyID); err != nil {
		return err
	}

	rows, err := t.tx.QueryContext(ctx, selectTop5PublishedSQL, propertyID, domain.MaxTop5)
	if err != nil {
		return err
	}
	defer rows.Close()

	snaps := make([]domain.ReviewSnapshot, 0, domain.MaxTop5)
	for rows.Next() {
		var s domain.ReviewSnapshot
		var structured []byte
		if err := rows.Scan(&s.ID, &s.UserName, &s.OverallRating, &structured, &s.Body, &s.CreatedAt); err != nil {
			return err
		}
		if s.Structured, err = decodeStructured(structured); err != nil {
			return fmt.Errorf("decode structured for %s: %w", s.ID, err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	b, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode top_5_reviews: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, updateTop5SQL, string(b), propertyID)
	return err
}

func (t *Tx) GetTop5(ctx context.Context, propertyID string) (domain.PropertyTop5, error) {
	return getTop5(ctx, t.tx, propertyID)
}
