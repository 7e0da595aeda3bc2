package dao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	LATEST_BORDER_KEY          = "border.json"
	PREVIOUS_BORDER_KEY        = "border-prev.json"
	CHANNELS_KEY               = "channels.json"
	PAST_BORDER_KEY_FORMAT     = "border-past%d.json"
	BORDER_HISTORY_FILE_FORMAT = "border_history_%d.csv"
)

// ErrNotFound reports a key that has never been saved.
var ErrNotFound = errors.New("cache miss")

func PastBorderKey(eventId int) string {
	return fmt.Sprintf(PAST_BORDER_KEY_FORMAT, eventId)
}

type S3Uploader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Cache is a durable key to JSON document store.
// Load returns ErrNotFound for absent keys. A saved JSON null is present.
// Save fully overwrites the key and is atomic for readers.
type Cache interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
}

// History archives every broadcast snapshot as CSV rows, one file per event.
type History interface {
	Append(ctx context.Context, eventId int, rows []models.BorderRow) error
}

func LoadJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := c.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func SaveJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.Save(ctx, key, data)
}
