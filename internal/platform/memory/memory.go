// Package memory is a loopback platform that keeps channels as in-process
// rooms. Occupancy is driven explicitly through Join and Leave.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ganot/voicematch/internal/platform"
	"github.com/google/uuid"
)

// ErrNotPermitted indicates a participant tried to enter a channel that
// was not provisioned for them.
var ErrNotPermitted = errors.New("participant not permitted in channel")

// Notification is a recorded direct message.
type Notification struct {
	ParticipantID string `json:"participant_id"`
	Message       string `json:"message"`
}

type room struct {
	communityID string
	channel     platform.Channel
	allowed     [2]string
	occupants   []string
}

// Platform implements platform.Platform in memory. It is safe for
// concurrent use.
type Platform struct {
	mu            sync.Mutex
	rooms         map[string]*room
	goneCommunity map[string]bool
	goneMember    map[string]bool
	failNotify    map[string]bool
	provisionErr  error
	outbox        []Notification
}

var _ platform.Platform = (*Platform)(nil)

// New creates an empty loopback platform.
func New() *Platform {
	return &Platform{
		rooms:         make(map[string]*room),
		goneCommunity: make(map[string]bool),
		goneMember:    make(map[string]bool),
		failNotify:    make(map[string]bool),
	}
}

// ProvisionSession creates a room restricted to the two participants.
func (p *Platform) ProvisionSession(_ context.Context, req platform.ProvisionRequest) (platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.provisionErr != nil {
		return platform.Channel{}, p.provisionErr
	}
	if p.goneCommunity[req.CommunityID] {
		return platform.Channel{}, platform.ErrCommunityNotFound
	}
	for _, id := range req.Participants {
		if p.goneMember[id] {
			return platform.Channel{}, fmt.Errorf("%s: %w", id, platform.ErrParticipantNotFound)
		}
	}

	id := uuid.NewString()
	ch := platform.Channel{ID: id, Name: req.Name, Invite: "loopback://" + id}
	p.rooms[id] = &room{communityID: req.CommunityID, channel: ch, allowed: req.Participants}
	return ch, nil
}

// DestroySession removes the room.
func (p *Platform) DestroySession(_ context.Context, communityID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.goneCommunity[communityID] {
		return platform.ErrCommunityNotFound
	}
	r, ok := p.rooms[channelID]
	if !ok || r.communityID != communityID {
		return platform.ErrChannelNotFound
	}
	delete(p.rooms, channelID)
	return nil
}

// Notify records the message in the outbox.
func (p *Platform) Notify(_ context.Context, participantID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNotify[participantID] || p.goneMember[participantID] {
		return fmt.Errorf("notify %s: %w", participantID, platform.ErrParticipantNotFound)
	}
	p.outbox = append(p.outbox, Notification{ParticipantID: participantID, Message: message})
	return nil
}

// ListLiveOccupants returns the participants currently in the room.
func (p *Platform) ListLiveOccupants(_ context.Context, communityID, channelID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.roomLocked(communityID, channelID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.occupants), nil
}

// Join puts a participant into the room and returns the live occupants.
// Joining twice is a no-op.
func (p *Platform) Join(communityID, channelID, participantID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.roomLocked(communityID, channelID)
	if err != nil {
		return nil, err
	}
	if r.allowed[0] != participantID && r.allowed[1] != participantID {
		return nil, ErrNotPermitted
	}
	if !slices.Contains(r.occupants, participantID) {
		r.occupants = append(r.occupants, participantID)
	}
	return slices.Clone(r.occupants), nil
}

// Leave removes a participant from the room and returns the live
// occupants.
func (p *Platform) Leave(communityID, channelID, participantID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.roomLocked(communityID, channelID)
	if err != nil {
		return nil, err
	}
	r.occupants = slices.DeleteFunc(r.occupants, func(id string) bool { return id == participantID })
	return slices.Clone(r.occupants), nil
}

func (p *Platform) roomLocked(communityID, channelID string) (*room, error) {
	if p.goneCommunity[communityID] {
		return nil, platform.ErrCommunityNotFound
	}
	r, ok := p.rooms[channelID]
	if !ok || r.communityID != communityID {
		return nil, platform.ErrChannelNotFound
	}
	return r, nil
}

// Channels lists the live rooms of a community sorted by name.
func (p *Platform) Channels(communityID string) []platform.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []platform.Channel
	for _, r := range p.rooms {
		if r.communityID == communityID {
			out = append(out, r.channel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Outbox returns all delivered notifications in delivery order.
func (p *Platform) Outbox() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.outbox)
}

// RemoveCommunity simulates the community disappearing. All of its rooms
// are lost.
func (p *Platform) RemoveCommunity(communityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.goneCommunity[communityID] = true
	for id, r := range p.rooms {
		if r.communityID == communityID {
			delete(p.rooms, id)
		}
	}
}

// RemoveParticipant simulates a participant leaving the community.
func (p *Platform) RemoveParticipant(participantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goneMember[participantID] = true
}

// FailNotifications makes every notification to participantID fail.
func (p *Platform) FailNotifications(participantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNotify[participantID] = true
}

// FailProvisioning makes every subsequent provision return err. A nil err
// restores normal behavior.
func (p *Platform) FailProvisioning(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisionErr = err
}
