package matchmaker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ganot/voicematch/internal/domain/queue"
)

// JoinedMessage is the reply to an accepted join.
func JoinedMessage(res JoinResult) string {
	kind := "Random"
	if res.Bucket != queue.General {
		kind = "Cross-category"
	}
	return fmt.Sprintf("You're in the %s queue. %s matching starts in %d seconds.", res.Bucket, kind, int(res.Delay.Seconds()))
}

// AlreadyQueuedMessage is the reply to a duplicate join. It returns ""
// when err is not an already-queued rejection.
func AlreadyQueuedMessage(err error, now time.Time) string {
	var aq *queue.AlreadyQueuedError
	if !errors.As(err, &aq) {
		return ""
	}
	remaining := aq.Remaining(now)
	if remaining <= 0 {
		return "You're already queued. Matching will pick you up shortly."
	}
	return fmt.Sprintf("You're already queued. %d seconds left.", int(math.Ceil(remaining.Seconds())))
}

// CancelledMessage is the reply to a cancel request.
func CancelledMessage(bucket queue.Bucket, removed bool) string {
	if removed {
		return fmt.Sprintf("Removed you from the %s queue.", bucket)
	}
	return fmt.Sprintf("You're not in the %s queue.", bucket)
}

func matchedMessage(partner, ref string) string {
	return fmt.Sprintf("Matched with %s! Head to your private voice channel: %s", partner, ref)
}

func provisionFailedMessage(err error) string {
	return fmt.Sprintf("We couldn't create your voice channel. Please contact an admin and rejoin the queue.\n```\n%v\n```", err)
}
