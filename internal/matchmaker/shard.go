package matchmaker

import (
	"context"
	"math/rand/v2"

	"github.com/ganot/voicematch/internal/domain/pairing"
	"github.com/ganot/voicematch/internal/domain/queue"
	"github.com/ganot/voicematch/internal/domain/session"
)

const mailboxSize = 64

// shard owns one community's queues and sessions. Only the shard
// goroutine touches them; every unit of work arrives as a message.
type shard struct {
	communityID string

	queues   *queue.Set
	sessions *session.Registry
	names    map[string]string
	rng      *rand.Rand

	// locks is used off the shard goroutine.
	locks *sessionLocks

	mailbox chan func()
	quit    chan struct{}
	done    chan struct{}
}

func newShard(communityID string, categories []queue.Bucket) *shard {
	s := &shard{
		communityID: communityID,
		queues:      queue.NewSet(categories),
		sessions:    session.NewRegistry(),
		names:       make(map[string]string),
		rng:         pairing.NewRand(),
		locks:       newSessionLocks(),
		mailbox:     make(chan func(), mailboxSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *shard) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.mailbox:
			fn()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the shard goroutine and waits for it to finish. Once a
// message is accepted it is waited for even if ctx ends, since fn
// writes into the caller's variables.
func (s *shard) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	msg := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.mailbox <- msg:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (s *shard) stop() {
	close(s.quit)
	<-s.done
}

// displayName returns the remembered display name, falling back to the id.
func (s *shard) displayName(participantID string) string {
	if name := s.names[participantID]; name != "" {
		return name
	}
	return participantID
}

// forget drops the display name once the participant waits nowhere.
func (s *shard) forget(participantID string) {
	if !s.queues.Contains(participantID) {
		delete(s.names, participantID)
	}
}
