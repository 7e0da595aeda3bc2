package dao

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/alceccentric/mltd-borderbot/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type S3Lister interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Mirror downloads every object under prefix into localRoot, keyed by the
// object key relative to prefix, so a local cache can take over from R2.
// A failing object does not stop the others.
func Mirror(ctx context.Context, client S3Lister, bucket, prefix, localRoot string) (int, error) {
	listPrefix := prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(listPrefix),
	})

	downloaded := 0
	var errs error
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return downloaded, multierr.Append(errs, fmt.Errorf("failed to list %s: %w", bucket, err))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, listPrefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			localPath := filepath.Join(localRoot, filepath.FromSlash(rel))
			if r, err := filepath.Rel(localRoot, localPath); err != nil || strings.HasPrefix(r, "..") {
				logrus.Warnf("Skipping %s, it escapes %s", key, localRoot)
				continue
			}

			logrus.Infof("Downloading: %s", key)
			if err := download(ctx, client, bucket, key, localPath); err != nil {
				logrus.WithError(err).Errorf("Failed to download %s", key)
				errs = multierr.Append(errs, err)
				continue
			}
			downloaded++
		}
	}
	return downloaded, errs
}

func download(ctx context.Context, client S3Lister, bucket, key, localPath string) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if err := utils.CreateDirectoryIfNotExists(filepath.Dir(localPath)); err != nil {
		return err
	}
	return utils.WriteFileAtomic(localPath, data)
}
