package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/alceccentric/mltd-borderbot/internal/channels"
	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/internal/format"
	"github.com/alceccentric/mltd-borderbot/internal/metrics"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Broadcast(ctx context.Context, text string) ([]channels.Delivery, error)
}

// Updater publishes a freshly fetched snapshot: it broadcasts the report,
// rotates latest into previous and archives the rows.
type Updater struct {
	store    *Store
	notifier Notifier
	history  dao.History
}

func NewUpdater(store *Store, notifier Notifier, history dao.History) *Updater {
	return &Updater{store: store, notifier: notifier, history: history}
}

func (u *Updater) Update(ctx context.Context, doc models.BorderDocument) error {
	var baseline *models.BorderDocument
	latest, err := u.store.Latest(ctx)
	switch {
	case err == nil:
		if latest.Metadata.ID == doc.Metadata.ID {
			if latest.Datetime.Equal(doc.Datetime) {
				logrus.Infof("Snapshot %s of event %d was already delivered", doc.Datetime.Format(models.DisplayTimeLayout), doc.Metadata.ID)
				metrics.UpdateTicksTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
				return nil
			}
			baseline = &latest
		}
	case errors.Is(err, dao.ErrNotFound):
		logrus.Info("No previous snapshot in cache")
	default:
		// An unreadable latest is replaced by this snapshot.
		logrus.WithError(err).Warn("Stored latest snapshot is unreadable, broadcasting without a baseline")
	}

	deliveries, err := u.notifier.Broadcast(ctx, format.Format(doc, baseline))
	countDeliveries(deliveries)
	if err != nil {
		if !errors.Is(err, channels.ErrChannelDeliveryFailed) {
			return fmt.Errorf("broadcast: %w", err)
		}
		logrus.WithError(err).Warn("Some channels did not receive the border report")
	}

	if err := u.store.Replace(ctx, doc, baseline); err != nil {
		return fmt.Errorf("save border: %w", err)
	}
	metrics.LastUpdateTimestamp.Set(float64(doc.Datetime.Unix()))

	if u.history != nil {
		if err := u.history.Append(ctx, doc.Metadata.ID, doc.Rows()); err != nil {
			logrus.WithError(err).Warnf("Failed to archive border rows of event %d", doc.Metadata.ID)
		}
	}
	metrics.UpdateTicksTotal.WithLabelValues(metrics.OutcomeUpdated).Inc()
	return nil
}

func countDeliveries(deliveries []channels.Delivery) {
	for _, d := range deliveries {
		if d.Err != nil {
			metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		} else {
			metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeDelivered).Inc()
		}
	}
}
