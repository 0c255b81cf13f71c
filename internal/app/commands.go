package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"property_reviews/internal/adapters/observability"
	"property_reviews/internal/domain"
)

type ModerationService struct {
	store domain.ReviewStore
	gate  *FraudGate
	cache top5Cache
	newID func() string
}

// NewModerationService wires the pipeline. cache may be nil; cacheTTL is
// the lifetime of the top-5 entries written through after each commit.
func NewModerationService(s domain.ReviewStore, g *FraudGate, cache domain.Cache, cacheTTL time.Duration) *ModerationService {
	return &ModerationService{store: s, gate: g, cache: top5Cache{c: cache, ttl: cacheTTL}, newID: uuid.NewString}
}

type SubmitResult struct {
	Status domain.Status
	Review domain.Review
}

// Submit runs the moderation pipeline: the fraud gate decides the initial
// status, then the insert and (for published reviews) the top-5 refresh
// commit together or not at all.
func (s *ModerationService) Submit(ctx context.Context, sub domain.Submission) (SubmitResult, error) {
	if err := sub.Validate(); err != nil {
		return SubmitResult{}, err
	}

	// Gate only; properties are never deleted, so this can run outside the tx.
	ok, err := s.store.PropertyExists(ctx, sub.PropertyID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: property lookup: %w", domain.ErrTransaction, err)
	}
	if !ok {
		return SubmitResult{}, fmt.Errorf("%w: property %s: %w", domain.ErrValidation, sub.PropertyID, domain.ErrNotFound)
	}

	var out SubmitResult
	var top domain.PropertyTop5
	err = s.store.WithTx(ctx, func(tx domain.ReviewTx) error {
		trusted, err := s.gate.Trustworthy(ctx, tx, sub.UserName, sub.Body)
		if err != nil {
			return fmt.Errorf("fraud gate: %w", err)
		}
		status := domain.StatusPending
		if trusted {
			status = domain.StatusPublished
			if err := tx.LockProperty(ctx, sub.PropertyID); err != nil {
				return fmt.Errorf("lock property: %w", err)
			}
		}

		id := s.newID()
		if err := tx.InsertReview(ctx, domain.Review{
			ID:            id,
			PropertyID:    sub.PropertyID,
			UserName:      sub.UserName,
			OverallRating: sub.OverallRating,
			Structured:    sub.Structured,
			Body:          sub.Body,
			Status:        status,
		}); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		if status == domain.StatusPublished {
			if err := tx.MaterializeTop5(ctx, sub.PropertyID); err != nil {
				return fmt.Errorf("materialize top5: %w", err)
			}
			if top, err = tx.GetTop5(ctx, sub.PropertyID); err != nil {
				return fmt.Errorf("reload top5: %w", err)
			}
		}

		stored, err := tx.GetReview(ctx, id)
		if err != nil {
			return fmt.Errorf("reload review: %w", err)
		}
		out = SubmitResult{Status: status, Review: stored}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("property_id", sub.PropertyID).Msg("submit review failed")
		return SubmitResult{}, txErr(err)
	}

	observability.ObserveSubmission(string(out.Status))
	log.Info().
		Str("review_id", out.Review.ID).
		Str("property_id", sub.PropertyID).
		Str("status", string(out.Status)).
		Msg("review submitted")

	if out.Status == domain.StatusPublished {
		s.cache.store(ctx, top)
	}
	return out, nil
}

// Publish flips a review to published and refreshes its property's top-5
// in the same transaction. Publishing an already published review succeeds
// and rematerializes.
func (s *ModerationService) Publish(ctx context.Context, reviewID string) (domain.PropertyTop5, error) {
	if _, err := uuid.Parse(reviewID); err != nil {
		return domain.PropertyTop5{}, fmt.Errorf("review %q: %w", reviewID, domain.ErrNotFound)
	}

	var out domain.PropertyTop5
	err := s.store.WithTx(ctx, func(tx domain.ReviewTx) error {
		propertyID, err := tx.LockReview(ctx, reviewID)
		if err != nil {
			return fmt.Errorf("review %s: %w", reviewID, err)
		}
		if err := tx.MarkPublished(ctx, reviewID); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		if err := tx.MaterializeTop5(ctx, propertyID); err != nil {
			return fmt.Errorf("materialize top5: %w", err)
		}
		if out, err = tx.GetTop5(ctx, propertyID); err != nil {
			return fmt.Errorf("reload top5: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("review_id", reviewID).Msg("publish review failed")
		}
		return domain.PropertyTop5{}, txErr(err)
	}

	observability.ObservePublish()
	log.Info().Str("review_id", reviewID).Str("property_id", out.PropertyID).Msg("review published")

	s.cache.store(ctx, out)
	return out, nil
}

// Rematerialize recomputes one property's top-5 in its own transaction.
// Safe to run at any time since the result depends only on the published set.
func (s *ModerationService) Rematerialize(ctx context.Context, propertyID string) error {
	var top domain.PropertyTop5
	err := s.store.WithTx(ctx, func(tx domain.ReviewTx) error {
		var err error
		if err = tx.MaterializeTop5(ctx, propertyID); err != nil {
			return err
		}
		top, err = tx.GetTop5(ctx, propertyID)
		return err
	})
	if err != nil {
		return txErr(err)
	}
	s.cache.store(ctx, top)
	return nil
}

// txErr keeps not-found and validation errors as they are and marks every
// other failure as a rolled-back, retryable transaction error.
func txErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrTransaction) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransaction, err)
}
