package matsuri

import (
	"context"
	"fmt"

	"github.com/alceccentric/mltd-borderbot/models"
)

type Fetcher struct {
	client MatsuriClient
}

func NewFetcher(client MatsuriClient) *Fetcher {
	return &Fetcher{client: client}
}

// FetchBorder returns the latest event point snapshot of ev stamped with the
// event metadata. Malformed payloads are rejected here rather than later.
func (f *Fetcher) FetchBorder(ctx context.Context, ev models.EventRecord) (models.BorderDocument, error) {
	if !ev.HasBorder {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d", ErrNoBorderForEvent, ev.ID)
	}

	resp, err := f.client.GetEventPointLogs(ctx, ev.ID)
	if err != nil {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d: %v", ErrFetchFailed, ev.ID, err)
	}
	if !resp.Status {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d: api returned status false", ErrFetchFailed, ev.ID)
	}
	logs := resp.Data.Logs
	if len(logs) == 0 {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d: no logs", ErrFetchFailed, ev.ID)
	}

	// Logs are append-only and time ordered.
	latest := logs[len(logs)-1]
	datetime, err := models.ParseJapanTime(latest.Datetime)
	if err != nil {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d: %v", ErrFetchFailed, ev.ID, err)
	}

	doc := models.BorderDocument{
		Datetime: datetime,
		Borders:  latest.Borders,
		Metadata: models.BorderMetadata{
			Name:   ev.Name,
			ID:     ev.ID,
			Starts: ev.Starts,
			Ends:   ev.Ends,
		},
	}
	if err := doc.Validate(); err != nil {
		return models.BorderDocument{}, fmt.Errorf("%w: event %d: %v", ErrFetchFailed, ev.ID, err)
	}
	return doc, nil
}
