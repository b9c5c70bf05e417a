package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cenownik/pricewatch/internal/domain/history"
)

var _ history.Repo = (*HistoryRepoImpl)(nil)

type HistoryRepoImpl struct{ db *DB }

func NewHistoryRepo(db *DB) *HistoryRepoImpl { return &HistoryRepoImpl{db: db} }

const (
	qObsInsert = `
INSERT INTO price_history (offer_id, price, previous_price, target_price_at_time, target_price_reached, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`

	qObsBase = `
SELECT id, offer_id, price, previous_price, target_price_at_time, target_price_reached, created_at
FROM price_history
`
)

func (r *HistoryRepoImpl) Append(ctx context.Context, o *history.Observation) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.Pool.QueryRow(ctx, qObsInsert,
		o.OfferID, o.Price, o.PreviousPrice, o.TargetPriceAtTime, o.TargetReached, o.ObservedAt,
	).Scan(&o.ID); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

func (r *HistoryRepoImpl) List(ctx context.Context, f history.Filter) ([]*history.Observation, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if f.OfferID != nil {
		args = append(args, *f.OfferID)
		conds = append(conds, "offer_id = $"+strconv.Itoa(len(args)))
	}
	if f.TargetReachedOnly {
		conds = append(conds, "target_price_reached = TRUE")
	}

	q := qObsBase
	if len(conds) > 0 {
		q += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	args = append(args, limit)
	q += "ORDER BY created_at DESC\nLIMIT $" + strconv.Itoa(len(args)) + ";"

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	out := make([]*history.Observation, 0, limit)
	for rows.Next() {
		var o history.Observation
		if err := rows.Scan(
			&o.ID, &o.OfferID, &o.Price, &o.PreviousPrice,
			&o.TargetPriceAtTime, &o.TargetReached, &o.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		oc := o
		out = append(out, &oc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
