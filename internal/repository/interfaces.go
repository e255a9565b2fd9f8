package repository

import (
	"context"

	"github.com/ganot/voicematch/internal/domain/activity"
)

// ActivityRepository manages activity log persistence
type ActivityRepository interface {
	Log(ctx context.Context, communityID string, entry *activity.ActivityEntry) error
	List(ctx context.Context, communityID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

var _ activity.Repository = ActivityRepository(nil)

// APIKeyRepository maps bearer tokens to the community they act for.
// Only a hash of each token is stored.
type APIKeyRepository interface {
	Add(ctx context.Context, token, communityID, description string) error
	ResolveCommunity(ctx context.Context, token string) (string, error)
}
