package dao

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

type R2Credentials struct {
	Endpoint        string
	AccessKeyId     string
	SecretAccessKey string
}

// R2Cache stores documents as objects under prefix in an R2 (S3 compatible) bucket.
// A PutObject replaces the object in one step, so readers never see partial documents.
type R2Cache struct {
	s3         S3Uploader
	bucketName string
	prefix     string
}

func NewR2Cache(ctx context.Context, bucketName, prefix string, creds R2Credentials) (*R2Cache, error) {
	client, err := NewS3Client(ctx, creds)
	if err != nil {
		return nil, err
	}
	return NewR2CacheWithClient(bucketName, prefix, client), nil
}

func NewR2CacheWithClient(bucketName, prefix string, s3Client S3Uploader) *R2Cache {
	return &R2Cache{
		s3:         s3Client,
		bucketName: bucketName,
		prefix:     prefix,
	}
}

func (u *R2Cache) Load(ctx context.Context, key string) ([]byte, error) {
	objectKey := path.Join(u.prefix, key)
	resp, err := u.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objectKey, err)
	}
	return data, nil
}

func (u *R2Cache) Save(ctx context.Context, key string, doc []byte) error {
	objectKey := path.Join(u.prefix, key)
	logrus.Debugf("Saving %d bytes to bucket: %s with key: %s", len(doc), u.bucketName, objectKey)
	_, err := u.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}
	return nil
}

// History returns an archive writing CSV objects next to the cached documents.
func (u *R2Cache) History(historyPrefix string) *R2History {
	return &R2History{
		s3:         u.s3,
		bucketName: u.bucketName,
		prefix:     path.Join(u.prefix, historyPrefix),
	}
}

type R2History struct {
	s3         S3Uploader
	bucketName string
	prefix     string
}

func (h *R2History) Append(ctx context.Context, eventId int, rows []models.BorderRow) error {
	if len(rows) == 0 {
		return nil
	}
	key := path.Join(h.prefix, fmt.Sprintf(BORDER_HISTORY_FILE_FORMAT, eventId))
	logrus.Infof("Appending %d border rows to bucket: %s with key: %s", len(rows), h.bucketName, key)
	return appendCSVToR2(ctx, h.s3, h.bucketName, key, rows)
}

func NewS3Client(ctx context.Context, creds R2Credentials) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyId, creds.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(creds.Endpoint)
	}), nil
}

// appendCSVToR2 appends records to the CSV object at key, writing the header
// only when the object does not exist yet.
func appendCSVToR2[T any](
	ctx context.Context,
	client S3Uploader,
	bucket, key string,
	records []T,
) error {
	// Marshal all records to CSV bytes (includes header)
	csvBytes, err := gocsv.MarshalBytes(records)
	if err != nil {
		return fmt.Errorf("failed to marshal csv: %w", err)
	}

	fullData := csvBytes
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if !errors.As(err, &nsk) {
			return fmt.Errorf("failed to get object: %w", err)
		}
	} else {
		defer resp.Body.Close()
		existingData, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read existing object: %w", err)
		}

		idx := bytes.IndexByte(csvBytes, '\n')
		if idx == -1 {
			return fmt.Errorf("csv data malformed, no newline found")
		}
		fullData = append(existingData, csvBytes[idx+1:]...)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(fullData),
	})
	return err
}
