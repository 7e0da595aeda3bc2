package dao

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alceccentric/mltd-borderbot/internal/utils"
	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type LocalCache struct {
	root string
}

func NewLocalCache(root, historyDir string) (*LocalCache, *LocalHistory, error) {
	var err error
	err = multierr.Append(err, utils.CreateDirectoryIfNotExists(root))
	err = multierr.Append(err, utils.CreateDirectoryIfNotExists(filepath.Join(root, historyDir)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache directories: %w", err)
	}
	return &LocalCache{root: root}, &LocalHistory{dir: filepath.Join(root, historyDir)}, nil
}

func (c *LocalCache) path(key string) string {
	return filepath.Join(c.root, filepath.Base(key))
}

func (c *LocalCache) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (c *LocalCache) Save(_ context.Context, key string, doc []byte) error {
	logrus.Debugf("Saving %d bytes to %s", len(doc), c.path(key))
	return utils.WriteFileAtomic(c.path(key), doc)
}

type LocalHistory struct {
	dir string
}

func (h *LocalHistory) Append(_ context.Context, eventId int, rows []models.BorderRow) error {
	path := filepath.Join(h.dir, fmt.Sprintf(BORDER_HISTORY_FILE_FORMAT, eventId))
	logrus.Infof("Appending %d border rows to %s", len(rows), path)
	return save(path, rows, utils.LocalFileExists(path))
}

func save[T any](path string, infos []T, append bool) error {
	var file *os.File
	var err error

	if len(infos) == 0 {
		logrus.Warnf("No data to save to %s", path)
		return nil
	}

	flag := os.O_CREATE | os.O_WRONLY
	if append {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}

	if file, err = os.OpenFile(path, flag, 0644); err != nil {
		return err
	}
	defer file.Close()

	if !append {
		return gocsv.MarshalFile(infos, file)
	}
	csvWriter := csv.NewWriter(file)
	if err = gocsv.MarshalCSVWithoutHeaders(infos, csvWriter); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
