package offer

import "context"

type Repo interface {
	ListRefs(ctx context.Context) ([]Ref, error)
	GetByID(ctx context.Context, id int64) (*Offer, error)
	UpdateScraped(ctx context.Context, id int64, price float64, title, source string) error
}
