package jobs

import (
	"context"
	"fmt"

	"github.com/alceccentric/mltd-borderbot/internal/dao"
	"github.com/alceccentric/mltd-borderbot/models"
	"go.uber.org/multierr"
)

// Store keeps the latest and previous broadcast snapshots plus the snapshots
// of past events on top of a dao.Cache.
type Store struct {
	cache dao.Cache
}

func NewStore(cache dao.Cache) *Store {
	return &Store{cache: cache}
}

// Latest returns the last broadcast snapshot or an error wrapping dao.ErrNotFound.
func (s *Store) Latest(ctx context.Context) (models.BorderDocument, error) {
	return s.load(ctx, dao.LATEST_BORDER_KEY)
}

// Previous returns the snapshot the latest one was diffed against. It is nil
// when the latest snapshot had no baseline, and dao.ErrNotFound when nothing
// has been stored yet.
func (s *Store) Previous(ctx context.Context) (*models.BorderDocument, error) {
	var stored *models.StoredBorder
	if err := dao.LoadJSON(ctx, s.cache, dao.PREVIOUS_BORDER_KEY, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	doc, err := models.Deserialize(*stored)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dao.PREVIOUS_BORDER_KEY, err)
	}
	return &doc, nil
}

// Replace makes latest the current snapshot and previous (possibly nil) its baseline.
func (s *Store) Replace(ctx context.Context, latest models.BorderDocument, previous *models.BorderDocument) error {
	var prev *models.StoredBorder
	if previous != nil {
		stored := models.Serialize(*previous)
		prev = &stored
	}
	var err error
	err = multierr.Append(err, dao.SaveJSON(ctx, s.cache, dao.LATEST_BORDER_KEY, models.Serialize(latest)))
	err = multierr.Append(err, dao.SaveJSON(ctx, s.cache, dao.PREVIOUS_BORDER_KEY, prev))
	return err
}

func (s *Store) Past(ctx context.Context, eventId int) (models.BorderDocument, error) {
	return s.load(ctx, dao.PastBorderKey(eventId))
}

func (s *Store) SavePast(ctx context.Context, doc models.BorderDocument) error {
	return dao.SaveJSON(ctx, s.cache, dao.PastBorderKey(doc.Metadata.ID), models.Serialize(doc))
}

func (s *Store) load(ctx context.Context, key string) (models.BorderDocument, error) {
	var stored models.StoredBorder
	if err := dao.LoadJSON(ctx, s.cache, key, &stored); err != nil {
		return models.BorderDocument{}, err
	}
	doc, err := models.Deserialize(stored)
	if err != nil {
		return models.BorderDocument{}, fmt.Errorf("%s: %w", key, err)
	}
	return doc, nil
}
