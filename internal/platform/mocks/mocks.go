package mocks

import (
	"context"

	"github.com/ganot/voicematch/internal/platform"
	"github.com/stretchr/testify/mock"
)

// Platform is a mock for platform.Platform.
type Platform struct {
	mock.Mock
}

var _ platform.Platform = (*Platform)(nil)

func (m *Platform) ProvisionSession(ctx context.Context, req platform.ProvisionRequest) (platform.Channel, error) {
	args := m.Called(ctx, req)
	if ch, ok := args.Get(0).(platform.Channel); ok {
		return ch, args.Error(1)
	}
	return platform.Channel{}, args.Error(1)
}

func (m *Platform) DestroySession(ctx context.Context, communityID, channelID string) error {
	args := m.Called(ctx, communityID, channelID)
	return args.Error(0)
}

func (m *Platform) Notify(ctx context.Context, participantID, message string) error {
	args := m.Called(ctx, participantID, message)
	return args.Error(0)
}

func (m *Platform) ListLiveOccupants(ctx context.Context, communityID, channelID string) ([]string, error) {
	args := m.Called(ctx, communityID, channelID)
	if live, ok := args.Get(0).([]string); ok {
		return live, args.Error(1)
	}
	return nil, args.Error(1)
}
