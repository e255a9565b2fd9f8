package activity

import "context"

// Repository provides persistence operations for activity entries.
type Repository interface {
	Log(ctx context.Context, communityID string, entry *ActivityEntry) error
	List(ctx context.Context, communityID string, opts ListActivityOptions) ([]ActivityEntry, error)
}
