package dao

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func objectBody(s string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
}

func getKey(key string) interface{} {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool { return aws.ToString(in.Key) == key })
}

func TestMirror(t *testing.T) {
	root := t.TempDir()
	mockS3 := new(MockS3Client)
	mockS3.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Bucket) == "bucket" && aws.ToString(in.Prefix) == "bot/"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents: []types.Object{
			{Key: aws.String("bot/border.json")},
			{Key: aws.String("bot/history/border_history_300.csv")},
			{Key: aws.String("bot/broken.json")},
			{Key: aws.String("bot/../escape.json")},
		},
	}, nil).Once()
	mockS3.On("GetObject", mock.Anything, getKey("bot/border.json")).Return(objectBody(`{"datetime":"x"}`), nil)
	mockS3.On("GetObject", mock.Anything, getKey("bot/history/border_history_300.csv")).Return(objectBody("event_id\n300\n"), nil)
	mockS3.On("GetObject", mock.Anything, getKey("bot/broken.json")).Return(nil, errors.New("network down"))

	n, err := Mirror(context.Background(), mockS3, "bucket", "bot", root)
	assert.Error(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(root, "border.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"datetime":"x"}`, string(data))
	data, err = os.ReadFile(filepath.Join(root, "history", "border_history_300.csv"))
	require.NoError(t, err)
	assert.Equal(t, "event_id\n300\n", string(data))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escape.json"))
	mockS3.AssertNotCalled(t, "GetObject", mock.Anything, getKey("bot/../escape.json"))
}
