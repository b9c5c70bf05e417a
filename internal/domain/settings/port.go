// Package settings is the key-value configuration store the scheduler
// persists its cron expression in, so it survives restarts.
package settings

import "context"

const KeyScrapeCron = "SCRAPE_CRON"

type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Upsert(ctx context.Context, key, value string) error
}
