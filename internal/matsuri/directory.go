package matsuri

import (
	"context"
	"fmt"
	"time"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/sirupsen/logrus"
)

// Directory resolves the event a border should be fetched for.
type Directory struct {
	client MatsuriClient
	now    func() time.Time
}

func NewDirectory(client MatsuriClient, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{client: client, now: now}
}

// ResolveEvent returns the event with the given id, or when eventId is nil the
// most recently published event whose type has borders.
func (d *Directory) ResolveEvent(ctx context.Context, eventId *int) (models.EventRecord, error) {
	resp, err := d.client.GetEvents(ctx)
	if err != nil {
		return models.EventRecord{}, fmt.Errorf("%w: %v", ErrEventListUnavailable, err)
	}
	if !resp.Status {
		return models.EventRecord{}, fmt.Errorf("%w: api returned status false", ErrEventListUnavailable)
	}

	ev, ok := findEvent(resp.Data, eventId)
	if !ok {
		if eventId == nil {
			return models.EventRecord{}, fmt.Errorf("%w: no event with border in %d events", ErrEventNotFound, len(resp.Data))
		}
		return models.EventRecord{}, fmt.Errorf("%w: id %d", ErrEventNotFound, *eventId)
	}

	record, err := models.NewEventRecord(
		ev.Id,
		ev.Name,
		ev.Schedule.BeginAt,
		ev.Schedule.EndAt,
		models.EventType(ev.Type),
		d.now(),
	)
	if err != nil {
		return models.EventRecord{}, fmt.Errorf("%w: %v", ErrEventListUnavailable, err)
	}
	logrus.Debugf("Resolved event %d (%s)", record.ID, record.Name)
	return record, nil
}

func findEvent(events []models.Event, eventId *int) (models.Event, bool) {
	if eventId != nil {
		for _, ev := range events {
			if ev.Id == *eventId {
				return ev, true
			}
		}
		return models.Event{}, false
	}
	for i := len(events) - 1; i >= 0; i-- {
		if models.EventType(events[i].Type).HasBorder() {
			return events[i], true
		}
	}
	return models.Event{}, false
}
