package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

var (
	ErrChannelDeliveryFailed = errors.New("channel delivery failed")
	ErrChannelMissing        = errors.New("channel does not exist")
)

// Messenger is the messaging platform as seen by the broadcaster.
type Messenger interface {
	Send(ctx context.Context, channelID, text string) error
	ChannelExists(ctx context.Context, channelID string) bool
}

// Delivery is the outcome of sending one broadcast to one channel.
type Delivery struct {
	Channel models.Channel
	Err     error
}

type Broadcaster struct {
	registry  *Registry
	messenger Messenger
	limiter   *rate.Limiter
}

// NewBroadcaster sends at most ratePerSec messages per second; zero or less disables limiting.
func NewBroadcaster(registry *Registry, messenger Messenger, ratePerSec float64) *Broadcaster {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = max(1, int(ratePerSec))
	}
	return &Broadcaster{
		registry:  registry,
		messenger: messenger,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Broadcast sends text to every registered channel in turn. A failing channel
// does not stop delivery to the rest; failed and vanished channels are pruned
// from the registry afterwards. The returned error wraps
// ErrChannelDeliveryFailed and combines every per-channel failure.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) ([]Delivery, error) {
	targets := b.registry.List()
	deliveries := make([]Delivery, 0, len(targets))
	var failed []string
	var errs error

	for _, ch := range targets {
		if err := b.limiter.Wait(ctx); err != nil {
			return deliveries, err
		}
		err := b.deliver(ctx, ch, text)
		deliveries = append(deliveries, Delivery{Channel: ch, Err: err})
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return deliveries, ctx.Err()
		}
		logrus.WithError(err).Errorf("Channel #%s on server %s failed, it will be pruned", ch.Name, ch.Server)
		failed = append(failed, ch.ID)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.ID, err))
	}

	if len(failed) > 0 {
		if _, err := b.registry.Prune(ctx, failed); err != nil {
			logrus.WithError(err).Error("Failed to persist pruned channels")
		}
		return deliveries, fmt.Errorf("%w: %d of %d channels: %w", ErrChannelDeliveryFailed, len(failed), len(targets), errs)
	}
	logrus.Infof("Broadcast delivered to %d channels", len(deliveries))
	return deliveries, nil
}

func (b *Broadcaster) deliver(ctx context.Context, ch models.Channel, text string) error {
	if !b.messenger.ChannelExists(ctx, ch.ID) {
		return ErrChannelMissing
	}
	return b.messenger.Send(ctx, ch.ID, text)
}
