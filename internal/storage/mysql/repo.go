package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"property_reviews/internal/adapters/observability"
	"property_reviews/internal/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) PropertyExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, propertyExistsSQL, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) GetTop5(ctx context.Context, propertyID string) (domain.PropertyTop5, error) {
	return getTop5(ctx, r.db, propertyID)
}

func (r *Repo) ListPropertyIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listPropertyIDsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WithTx acquires one connection from the pool, runs fn inside a
// READ COMMITTED transaction and releases it on every exit path. A nil
// return from fn commits; an error, a panic or a cancelled ctx rolls back.
func (r *Repo) WithTx(ctx context.Context, fn func(tx domain.ReviewTx) error) (err error) {
	start := time.Now()
	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		result := "commit"
		if err != nil {
			result = "rollback"
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error().Err(rbErr).Msg("rollback failed")
			}
		}
		observability.ObserveTx(result, time.Since(start))
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func getTop5(ctx context.Context, q queryer, propertyID string) (domain.PropertyTop5, error) {
	var out domain.PropertyTop5
	var raw []byte
	if err := q.QueryRowContext(ctx, getTop5SQL, propertyID).Scan(&out.PropertyID, &out.Name, &raw, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PropertyTop5{}, domain.ErrNotFound
		}
		return domain.PropertyTop5{}, err
	}
	snaps, err := decodeSnapshots(raw)
	if err != nil {
		return domain.PropertyTop5{}, fmt.Errorf("decode top_5_reviews for %s: %w", propertyID, err)
	}
	out.Top5Reviews = snaps
	return out, nil
}

// decodeSnapshots never returns nil so callers always see a JSON array.
func decodeSnapshots(raw []byte) ([]domain.ReviewSnapshot, error) {
	out := []domain.ReviewSnapshot{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ReviewSnapshot{}
	}
	return out, nil
}

func encodeStructured(m map[string]int) (string, error) {
	if m == nil {
		m = map[string]int{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStructured(raw []byte) (map[string]int, error) {
	out := map[string]int{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]int{}
	}
	return out, nil
}
