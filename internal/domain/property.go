package domain

import "time"

// PropertyTop5 is the read model served by the top-5 endpoint and returned
// from the publish workflow.
type PropertyTop5 struct {
	PropertyID  string           `json:"property_id"`
	Name        string           `json:"name"`
	Top5Reviews []ReviewSnapshot `json:"top_5_reviews"`
	// UpdatedAt is the properties.updated_at the list was read at. It
	// orders cache writes and is not part of the response body.
	UpdatedAt time.Time `json:"-"`
}

// Version is UpdatedAt as a monotonic integer for cache comparisons.
func (p PropertyTop5) Version() int64 { return p.UpdatedAt.UnixMicro() }

// MaxTop5 is the cardinality bound of the denormalized cache.
const MaxTop5 = 5
