package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/format"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/sirupsen/logrus"
)

// Lookup serves borders on request. Errors keep their identity
// (dao.ErrNotFound, matsuri.ErrEventNotFound, matsuri.ErrNoBorderForEvent) so
// callers can show a distinct message for each.
type Lookup struct {
	store    *Store
	resolver EventResolver
	source   BorderSource
	now      func() time.Time
}

func NewLookup(store *Store, resolver EventResolver, source BorderSource) *Lookup {
	return &Lookup{store: store, resolver: resolver, source: source, now: time.Now}
}

// Current returns the last broadcast snapshot and its baseline.
func (l *Lookup) Current(ctx context.Context) (models.BorderDocument, *models.BorderDocument, error) {
	latest, err := l.store.Latest(ctx)
	if err != nil {
		return models.BorderDocument{}, nil, err
	}
	previous, err := l.store.Previous(ctx)
	if err != nil && !errors.Is(err, dao.ErrNotFound) {
		return models.BorderDocument{}, nil, err
	}
	return latest, previous, nil
}

// Past returns the latest snapshot of the given event. Snapshots of ended
// events never change and are cached indefinitely.
func (l *Lookup) Past(ctx context.Context, eventId int) (models.BorderDocument, error) {
	doc, err := l.store.Past(ctx, eventId)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		logrus.WithError(err).Warnf("Cached border of event %d is unreadable, fetching again", eventId)
	}

	logrus.Infof("Event %d is not in cache, fetch now", eventId)
	ev, err := l.resolver.ResolveEvent(ctx, &eventId)
	if err != nil {
		return models.BorderDocument{}, err
	}
	doc, err = l.source.FetchBorder(ctx, ev)
	if err != nil {
		return models.BorderDocument{}, err
	}
	if doc.Metadata.Ends.Before(l.now()) {
		if err := l.store.SavePast(ctx, doc); err != nil {
			logrus.WithError(err).Warnf("Failed to cache border of event %d", eventId)
		}
	}
	return doc, nil
}

// Render formats the current border when eventId is nil, otherwise the
// border of that event without a delta baseline.
func (l *Lookup) Render(ctx context.Context, eventId *int) (string, error) {
	if eventId == nil {
		latest, previous, err := l.Current(ctx)
		if err != nil {
			return "", err
		}
		return format.Format(latest, previous), nil
	}
	doc, err := l.Past(ctx, *eventId)
	if err != nil {
		return "", err
	}
	return format.Format(doc, nil), nil
}
