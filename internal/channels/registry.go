package channels

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/metrics"
	"github.com/alceccentric/mltd-borderbot/models"
)

// Registry is the flat set of channels border reports are broadcast to,
// persisted as a JSON array under dao.CHANNELS_KEY.
type Registry struct {
	mu       sync.Mutex
	cache    dao.Cache
	channels []models.Channel
}

// LoadRegistry reads the registered channels; a missing document is an empty registry.
func LoadRegistry(ctx context.Context, cache dao.Cache) (*Registry, error) {
	var channels []models.Channel
	err := dao.LoadJSON(ctx, cache, dao.CHANNELS_KEY, &channels)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	r := &Registry{cache: cache}
	for _, ch := range channels {
		if ch.ID != "" && !r.containsLocked(ch.ID) {
			r.channels = append(r.channels, ch)
		}
	}
	metrics.RegisteredChannels.Set(float64(len(r.channels)))
	return r, nil
}

func (r *Registry) containsLocked(id string) bool {
	return slices.ContainsFunc(r.channels, func(ch models.Channel) bool { return ch.ID == id })
}

func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containsLocked(id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// List returns a snapshot of the registered channels.
func (r *Registry) List() []models.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.channels)
}

// Add registers ch and persists the registry. It reports false when ch was
// already registered.
func (r *Registry) Add(ctx context.Context, ch models.Channel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containsLocked(ch.ID) {
		return false, nil
	}
	r.channels = append(r.channels, ch)
	return true, r.saveLocked(ctx)
}

func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	return r.Prune(ctx, []string{id})
}

// Prune drops every channel in ids and persists the registry when anything changed.
func (r *Registry) Prune(ctx context.Context, ids []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.channels)
	r.channels = slices.DeleteFunc(r.channels, func(ch models.Channel) bool {
		return slices.Contains(ids, ch.ID)
	})
	if len(r.channels) == before {
		return false, nil
	}
	return true, r.saveLocked(ctx)
}

func (r *Registry) saveLocked(ctx context.Context) error {
	channels := r.channels
	if channels == nil {
		channels = []models.Channel{}
	}
	metrics.RegisteredChannels.Set(float64(len(channels)))
	if err := dao.SaveJSON(ctx, r.cache, dao.CHANNELS_KEY, channels); err != nil {
		return fmt.Errorf("save channels: %w", err)
	}
	return nil
}
