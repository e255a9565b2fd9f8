package mocks

import (
	"context"

	"github.com/ganot/voicematch/internal/domain/activity"
	"github.com/ganot/voicematch/internal/repository"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

var _ repository.ActivityRepository = (*ActivityRepository)(nil)

func (m *ActivityRepository) Log(ctx context.Context, communityID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, communityID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, communityID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, communityID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

var _ repository.APIKeyRepository = (*APIKeyRepository)(nil)

func (m *APIKeyRepository) Add(ctx context.Context, token, communityID, description string) error {
	args := m.Called(ctx, token, communityID, description)
	return args.Error(0)
}

func (m *APIKeyRepository) ResolveCommunity(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
