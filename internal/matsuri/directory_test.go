package matsuri

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMatsuriClient struct {
	mock.Mock
}

func (m *MockMatsuriClient) GetEvents(ctx context.Context) (models.EventsResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.EventsResponse), args.Error(1)
}

func (m *MockMatsuriClient) GetEventPointLogs(ctx context.Context, eventId int) (models.RankingResponse, error) {
	args := m.Called(ctx, eventId)
	return args.Get(0).(models.RankingResponse), args.Error(1)
}

var fixedNow = time.Date(2024, 1, 12, 0, 0, 0, 0, models.Japan())

func event(id, eventType int) models.Event {
	return models.Event{
		Id:   id,
		Name: "event",
		Type: eventType,
		Schedule: models.EventSchedule{
			BeginAt: "2024-01-10T15:00:00",
			EndAt:   "2024-01-17T20:59:59",
		},
	}
}

func newDirectory(client MatsuriClient) *Directory {
	return NewDirectory(client, func() time.Time { return fixedNow })
}

func TestResolveEvent_PicksOnlyBorderEvent(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{
		Status: true,
		Data:   []models.Event{event(1, 1), event(2, 3), event(3, 1)},
	}, nil).Once()

	ev, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.ID)
	assert.True(t, ev.HasBorder)
	assert.True(t, ev.IsActive)
	client.AssertExpectations(t)
}

func TestResolveEvent_MostRecentBorderEventWins(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{
		Status: true,
		Data:   []models.Event{event(1, 3), event(2, 4), event(3, 5), event(4, 1)},
	}, nil).Once()

	ev, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.ID)
}

func TestResolveEvent_NoBorderEvent(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{
		Status: true,
		Data:   []models.Event{event(1, 1), event(2, 5)},
	}, nil).Once()

	_, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestResolveEvent_ById(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{
		Status: true,
		Data:   []models.Event{event(1, 1), event(2, 3), event(3, 1)},
	}, nil)

	id := 3
	ev, err := newDirectory(client).ResolveEvent(context.Background(), &id)
	require.NoError(t, err)
	assert.Equal(t, 3, ev.ID)
	assert.False(t, ev.HasBorder)

	id = 5
	_, err = newDirectory(client).ResolveEvent(context.Background(), &id)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestResolveEvent_ListUnavailable(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{}, errors.New("dial tcp: timeout")).Once()

	_, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEventListUnavailable)
}

func TestResolveEvent_StatusFalse(t *testing.T) {
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{Status: false}, nil).Once()

	_, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEventListUnavailable)
}

func TestResolveEvent_MalformedSchedule(t *testing.T) {
	bad := event(2, 3)
	bad.Schedule.BeginAt = "tomorrow"
	client := new(MockMatsuriClient)
	client.On("GetEvents", mock.Anything).Return(models.EventsResponse{Status: true, Data: []models.Event{bad}}, nil).Once()

	_, err := newDirectory(client).ResolveEvent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEventListUnavailable)
}
