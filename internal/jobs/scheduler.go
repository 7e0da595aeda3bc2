package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/alceccentric/mltd-borderbot/internal/matsuri"
	"github.com/alceccentric/mltd-borderbot/internal/metrics"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type EventResolver interface {
	ResolveEvent(ctx context.Context, eventId *int) (models.EventRecord, error)
}

type BorderSource interface {
	FetchBorder(ctx context.Context, ev models.EventRecord) (models.BorderDocument, error)
}

type Sink interface {
	Update(ctx context.Context, doc models.BorderDocument) error
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type SchedulerConfig struct {
	Offset      time.Duration
	MinimumWait time.Duration
	RetryDelay  time.Duration
}

// Scheduler runs one update at a time on the half-hour cadence. A failed
// update waits RetryDelay and then resumes the cadence; it never gives up.
type Scheduler struct {
	cadence  cron.Schedule
	retry    cron.Schedule
	clock    Clock
	resolver EventResolver
	source   BorderSource
	sink     Sink
}

func NewScheduler(cfg SchedulerConfig, resolver EventResolver, source BorderSource, sink Sink, clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Scheduler{
		cadence:  NewHalfHourSchedule(cfg.Offset, cfg.MinimumWait),
		retry:    cron.Every(cfg.RetryDelay),
		clock:    clock,
		resolver: resolver,
		source:   source,
		sink:     sink,
	}
}

// Run blocks until ctx is canceled and returns its error.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := s.cadence.Next(s.clock.Now())
		logrus.Infof("Next update is scheduled at %s", next.In(models.Japan()).Format(time.DateTime))
		if err := s.sleepUntil(ctx, next); err != nil {
			return err
		}

		if err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.UpdateTicksTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			wake := s.retry.Next(s.clock.Now())
			logrus.WithError(err).Errorf("Update failed. Retry in %s", wake.Sub(s.clock.Now()).Round(time.Second))
			if err := s.sleepUntil(ctx, wake); err != nil {
				return err
			}
		}
	}
}

// Tick performs one update. Inactive or borderless events are expected
// states and return nil.
func (s *Scheduler) Tick(ctx context.Context) error {
	ev, err := s.resolver.ResolveEvent(ctx, nil)
	if err != nil {
		return err
	}
	if !ev.IsActive {
		logrus.Infof("Event %d is not active at this point.", ev.ID)
		metrics.UpdateTicksTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}
	doc, err := s.source.FetchBorder(ctx, ev)
	if errors.Is(err, matsuri.ErrNoBorderForEvent) {
		logrus.Info("The active event doesn't have border")
		metrics.UpdateTicksTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sink.Update(ctx, doc); err != nil {
		return err
	}
	logrus.Info("Update succeeds!")
	return nil
}

func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(t.Sub(s.clock.Now())):
		return nil
	}
}
