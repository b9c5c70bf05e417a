package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cenownik/pricewatch/internal/domain/settings"
)

var _ settings.Store = (*SettingsStoreImpl)(nil)

type SettingsStoreImpl struct{ db *DB }

func NewSettingsStore(db *DB) *SettingsStoreImpl { return &SettingsStoreImpl{db: db} }

const (
	qConfigGet = `SELECT value FROM app_config WHERE key = $1;`

	qConfigUpsert = `
INSERT INTO app_config (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now();
`
)

func (r *SettingsStoreImpl) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var value string
	if err := r.db.Pool.QueryRow(ctx, qConfigGet, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get config %q: %w", key, err)
	}
	return value, true, nil
}

func (r *SettingsStoreImpl) Upsert(ctx context.Context, key, value string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qConfigUpsert, key, value); err != nil {
		return fmt.Errorf("upsert config %q: %w", key, err)
	}
	return nil
}
