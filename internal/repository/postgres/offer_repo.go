package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cenownik/pricewatch/internal/domain/offer"
)

var _ offer.Repo = (*OfferRepoImpl)(nil)

type OfferRepoImpl struct {
	db *DB
}

func NewOfferRepo(db *DB) *OfferRepoImpl { return &OfferRepoImpl{db: db} }

const (
	// id + link only: the sweep re-reads the full row per offer, so the
	// batch listing stays cheap.
	qListRefs = `
SELECT id, link
FROM offers
ORDER BY id;
`

	qOfferByID = `
SELECT o.id, o.link, o.title, o.description, o.images, o.price, o.target_price,
       o.source, o.created_at, o.updated_at,
       u.id, u.email, u.username, u.discord_webhook_url
FROM offers o
LEFT JOIN users u ON u.id = o.user_id
WHERE o.id = $1;
`

	qUpdateScraped = `
UPDATE offers
SET price = $2, title = $3, source = $4, updated_at = now()
WHERE id = $1;
`
)

func (r *OfferRepoImpl) ListRefs(ctx context.Context) ([]offer.Ref, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qListRefs)
	if err != nil {
		return nil, fmt.Errorf("query offer refs: %w", err)
	}
	defer rows.Close()

	var out []offer.Ref
	for rows.Next() {
		var ref offer.Ref
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan offer ref: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *OfferRepoImpl) GetByID(ctx context.Context, id int64) (*offer.Offer, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		o          offer.Offer
		ownerID    *int64
		ownerEmail *string
		ownerName  *string
		ownerHook  *string
	)
	if err := r.db.Pool.QueryRow(ctx, qOfferByID, id).Scan(
		&o.ID,
		&o.URL,
		&o.Title,
		&o.Description,
		&o.Images,
		&o.Price,
		&o.TargetPrice,
		&o.Source,
		&o.CreatedAt,
		&o.UpdatedAt,
		&ownerID,
		&ownerEmail,
		&ownerName,
		&ownerHook,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}

	if ownerID != nil {
		own := offer.Owner{ID: *ownerID, DiscordWebhookURL: ownerHook}
		if ownerEmail != nil {
			own.Email = *ownerEmail
		}
		if ownerName != nil {
			own.Username = *ownerName
		}
		o.Owner = &own
	}
	return &o, nil
}

func (r *OfferRepoImpl) UpdateScraped(ctx context.Context, id int64, price float64, title, source string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qUpdateScraped, id, price, title, source)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
