package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
)

type Review struct {
	ID            string         `json:"id"`
	PropertyID    string         `json:"property_id"`
	UserName      string         `json:"user_name"`
	OverallRating int            `json:"overall_rating"`
	Structured    map[string]int `json:"structured"`
	Body          string         `json:"body"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ReviewSnapshot is the denormalized copy stored in properties.top_5_reviews.
type ReviewSnapshot struct {
	ID            string         `json:"id"`
	UserName      string         `json:"user_name"`
	OverallRating int            `json:"overall_rating"`
	Structured    map[string]int `json:"structured"`
	Body          string         `json:"body"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (r Review) Snapshot() ReviewSnapshot {
	s := r.Structured
	if s == nil {
		s = map[string]int{}
	}
	return ReviewSnapshot{
		ID:            r.ID,
		UserName:      r.UserName,
		OverallRating: r.OverallRating,
		Structured:    s,
		Body:          r.Body,
		CreatedAt:     r.CreatedAt,
	}
}

// Submission is an incoming review before moderation.
type Submission struct {
	PropertyID    string         `json:"property_id"`
	UserName      string         `json:"user_name"`
	OverallRating int            `json:"overall_rating"`
	Structured    map[string]int `json:"structured"`
	Body          string         `json:"body"`
}

const (
	MinRating          = 1
	MaxRating          = 5
	MaxStructuredScore = 10
	MaxUserNameLength  = 255
)

// Validate checks field shapes and ranges. Whether the property exists is
// checked by the pipeline, not here.
func (s Submission) Validate() error {
	if _, err := uuid.Parse(s.PropertyID); err != nil {
		return fmt.Errorf("%w: property_id must be a uuid", ErrValidation)
	}
	// stored and matched as given; only an all-blank name is rejected
	if strings.TrimSpace(s.UserName) == "" {
		return fmt.Errorf("%w: user_name is required", ErrValidation)
	}
	if utf8.RuneCountInString(s.UserName) > MaxUserNameLength {
		return fmt.Errorf("%w: user_name is too long", ErrValidation)
	}
	if s.OverallRating < MinRating || s.OverallRating > MaxRating {
		return fmt.Errorf("%w: overall_rating must be between %d and %d", ErrValidation, MinRating, MaxRating)
	}
	for k, v := range s.Structured {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: structured keys must be non-empty", ErrValidation)
		}
		if v < 0 || v > MaxStructuredScore {
			return fmt.Errorf("%w: structured[%s] must be between 0 and %d", ErrValidation, k, MaxStructuredScore)
		}
	}
	if s.Body == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	return nil
}
