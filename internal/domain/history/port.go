package history

import "context"

type Repo interface {
	Append(ctx context.Context, o *Observation) error
	// List returns observations newest first.
	List(ctx context.Context, f Filter) ([]*Observation, error)
}
