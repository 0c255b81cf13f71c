package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"property_reviews/internal/domain"
)

func top5Key(propertyID string) string { return "top5:" + propertyID }

// top5Cache fronts properties.top_5_reviews. Entries are versioned by
// properties.updated_at: writers store the committed list after commit and
// readers fill misses, and neither can replace a newer entry with an
// older one.
type top5Cache struct {
	c   domain.Cache
	ttl time.Duration
}

func (t top5Cache) ttlSec() int { return max(1, int(t.ttl.Seconds())) }

func (t top5Cache) get(ctx context.Context, propertyID string) (domain.PropertyTop5, bool) {
	if t.c == nil || t.ttl <= 0 {
		return domain.PropertyTop5{}, false
	}
	var out domain.PropertyTop5
	ok, err := t.c.Get(ctx, top5Key(propertyID), &out)
	if err != nil {
		log.Warn().Err(err).Str("property_id", propertyID).Msg("top5 cache read failed")
		return domain.PropertyTop5{}, false
	}
	return out, ok
}

// fill caches a list read outside any write. A refused fill means a writer
// already stored something newer.
func (t top5Cache) fill(ctx context.Context, p domain.PropertyTop5) {
	if t.c == nil || t.ttl <= 0 {
		return
	}
	// cache a copy so callers mutating p never touch the cached value
	cached := p
	cached.Top5Reviews = append(make([]domain.ReviewSnapshot, 0, len(p.Top5Reviews)), p.Top5Reviews...)
	if _, err := t.c.SetIfNewer(ctx, top5Key(p.PropertyID), cached, p.Version(), t.ttlSec()); err != nil {
		log.Warn().Err(err).Str("property_id", p.PropertyID).Msg("top5 cache fill failed")
	}
}

// store writes a just-committed list through. If that fails the entry is
// evicted so readers fall back to the database.
func (t top5Cache) store(ctx context.Context, p domain.PropertyTop5) {
	if t.c == nil {
		return
	}
	if t.ttl > 0 {
		_, err := t.c.SetIfNewer(ctx, top5Key(p.PropertyID), p, p.Version(), t.ttlSec())
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("property_id", p.PropertyID).Msg("top5 cache write-through failed, evicting")
	}
	if err := t.c.Del(ctx, top5Key(p.PropertyID)); err != nil {
		log.Error().Err(err).Str("property_id", p.PropertyID).Msg("top5 cache eviction failed")
	}
}
