// Package platform defines the chat-platform collaborators the matchmaker
// depends on. Implementations live in subpackages.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrChannelNotFound indicates the channel was removed out of band.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrCommunityNotFound indicates the owning community is gone.
	ErrCommunityNotFound = errors.New("community not found")
	// ErrParticipantNotFound indicates a participant left the community.
	ErrParticipantNotFound = errors.New("participant not found")
)

// ProvisionRequest describes a private two-party channel to create.
type ProvisionRequest struct {
	CommunityID  string
	Name         string
	Participants [2]string
}

// Channel is a provisioned private channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Invite is an optional reference handed to the participants.
	Invite string `json:"invite,omitempty"`
}

// Provisioner creates private channels.
type Provisioner interface {
	ProvisionSession(ctx context.Context, req ProvisionRequest) (Channel, error)
}

// Destroyer removes previously provisioned channels.
type Destroyer interface {
	DestroySession(ctx context.Context, communityID, channelID string) error
}

// Notifier delivers direct messages to participants.
type Notifier interface {
	Notify(ctx context.Context, participantID, message string) error
}

// OccupancyLister reports who is currently connected to a channel.
type OccupancyLister interface {
	ListLiveOccupants(ctx context.Context, communityID, channelID string) ([]string, error)
}

// Platform is the full set of collaborators.
type Platform interface {
	Provisioner
	Destroyer
	Notifier
	OccupancyLister
}

// IsStale reports whether err means the channel or its community no
// longer exists.
func IsStale(err error) bool {
	return errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrCommunityNotFound)
}
