package app

import (
	"context"
	"time"
	"unicode/utf8"

	"property_reviews/internal/domain"
)

// FraudPolicy holds the auto-publish heuristic: a body of at least
// MinBodyLength characters from an author with at most MaxRecent
// submissions inside Window.
type FraudPolicy struct {
	MinBodyLength int
	Window        time.Duration
	MaxRecent     int
}

func DefaultFraudPolicy() FraudPolicy {
	return FraudPolicy{MinBodyLength: 10, Window: 24 * time.Hour, MaxRecent: 3}
}

type FraudGate struct{ policy FraudPolicy }

func NewFraudGate(p FraudPolicy) *FraudGate { return &FraudGate{policy: p} }

// Trustworthy reports whether a submission may be auto-published. Short
// bodies fail without touching the store. The count covers the author's
// submissions of any status, read through the caller's transaction.
func (g *FraudGate) Trustworthy(ctx context.Context, tx domain.ReviewTx, userName, body string) (bool, error) {
	if utf8.RuneCountInString(body) < g.policy.MinBodyLength {
		return false, nil
	}
	n, err := tx.CountRecentByAuthor(ctx, userName, g.policy.Window)
	if err != nil {
		return false, err
	}
	return n <= g.policy.MaxRecent, nil
}
