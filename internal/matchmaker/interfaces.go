package matchmaker

import (
	"context"

	"github.com/ganot/voicematch/internal/domain/activity"
)

// ActivityLogger records match history. Failures are logged and ignored.
type ActivityLogger interface {
	LogActivity(ctx context.Context, communityID string, entry *activity.ActivityEntry) error
}
