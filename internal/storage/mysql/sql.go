package mysql

const propertyExistsSQL = `SELECT 1 FROM properties WHERE id = ?`

const listPropertyIDsSQL = `SELECT id FROM properties ORDER BY id`

const getTop5SQL = `
SELECT id, name, top_5_reviews, updated_at
FROM properties
WHERE id = ?
`

// Row lock on the parent property. Taken before any write that changes the
// published set so materializations of one property run one after another.
const lockPropertySQL = `SELECT id FROM properties WHERE id = ? FOR UPDATE`

// Counts every submission (any status) by the author in the trailing
// window, measured on the database clock.
const countRecentByAuthorSQL = `
SELECT COUNT(*)
FROM reviews
WHERE user_name = ?
  AND created_at >= NOW(6) - INTERVAL ? MICROSECOND
`

const insertReviewSQL = `
INSERT INTO reviews
  (id, property_id, user_name, overall_rating, structured, body, status)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const getReviewSQL = `
SELECT id, property_id, user_name, overall_rating, structured, body, status, created_at
FROM reviews
WHERE id = ?
`

const lockReviewSQL = `SELECT property_id FROM reviews WHERE id = ? FOR UPDATE`

// Unconditional: publishing an already published review is a no-op write.
const markPublishedSQL = `UPDATE reviews SET status = 'published' WHERE id = ?`

// -----------------------------------------------------------------------------
// TOP-5 MATERIALIZATION
// -----------------------------------------------------------------------------

// id breaks created_at ties so the order is total.
const selectTop5PublishedSQL = `
SELECT id, user_name, overall_rating, structured, body, created_at
FROM reviews
WHERE property_id = ? AND status = 'published'
ORDER BY created_at DESC, id DESC
LIMIT ?
`

const updateTop5SQL = `
UPDATE properties
SET top_5_reviews = ?,
    updated_at    = CURRENT_TIMESTAMP(6)
WHERE id = ?
`
