package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"property_reviews/internal/domain"
)

type QueryService struct {
	repo  domain.ReviewStore
	cache top5Cache
}

func NewQueryService(r domain.ReviewStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: top5Cache{c: c, ttl: ttl}}
}

func (s *QueryService) GetTop5(ctx context.Context, propertyID string) (domain.PropertyTop5, error) {
	if _, err := uuid.Parse(propertyID); err != nil {
		return domain.PropertyTop5{}, fmt.Errorf("property %q: %w", propertyID, domain.ErrNotFound)
	}

	if out, ok := s.cache.get(ctx, propertyID); ok {
		return out, nil
	}

	p, err := s.repo.GetTop5(ctx, propertyID)
	if err != nil {
		return domain.PropertyTop5{}, err
	}
	s.cache.fill(ctx, p)
	return p, nil
}
