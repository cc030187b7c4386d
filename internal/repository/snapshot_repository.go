package repository

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// SnapshotStore keeps human-readable audit copies of reports. Save returns
// where the snapshot ended up.
type SnapshotStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// SnapshotName is the dated file name of a report snapshot.
func SnapshotName(generatedAt time.Time) string {
	return fmt.Sprintf("integrity-report-%s.json", generatedAt.UTC().Format("2006-01-02"))
}

type fileSnapshotStore struct {
	directory string
	logger    zerolog.Logger
}

func NewFileSnapshotStore(directory string, logger zerolog.Logger) SnapshotStore {
	return &fileSnapshotStore{
		directory: directory,
		logger:    logger,
	}
}

// Save writes through a temporary file and renames it, so a reader never sees
// a half-written snapshot.
func (s *fileSnapshotStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	target := filepath.Join(s.directory, name)
	tmp, err := os.CreateTemp(s.directory, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	s.logger.Debug().Str("path", target).Int("bytes", len(data)).Msg("Snapshot written")
	return target, nil
}

type MinIOSnapshotStore struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOSnapshotStore(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, logger zerolog.Logger) (*MinIOSnapshotStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOSnapshotStore{
		client: client,
		bucket: bucket,
		region: region,
		logger: logger,
	}, nil
}

// ensureBucket retries until the bucket exists or ctx is done.
func (s *MinIOSnapshotStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("minio not ready: %w", err)
		}

		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && !exists {
			err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
			if err == nil {
				s.logger.Info().Str("bucket", s.bucket).Msg("Created snapshot bucket")
			}
		}
		if err == nil {
			s.bucketEnsured = true
			return nil
		}

		s.logger.Warn().Err(err).Str("bucket", s.bucket).Msg("Retrying snapshot bucket check")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}
}

func (s *MinIOSnapshotStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, info.Key)
	s.logger.Debug().Str("location", location).Int64("bytes", info.Size).Msg("Snapshot uploaded")
	return location, nil
}

// MultiSnapshotStore saves to every store in order. The first failure stops
// the chain; locations already written are kept in the error message.
type MultiSnapshotStore []SnapshotStore

func (m MultiSnapshotStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	var locations []string
	for _, store := range m {
		location, err := store.Save(ctx, name, data)
		if err != nil {
			return strings.Join(locations, ", "), fmt.Errorf("snapshot saved to %v, then failed: %w", locations, err)
		}
		locations = append(locations, location)
	}
	return strings.Join(locations, ", "), nil
}
