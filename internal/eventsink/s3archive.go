package eventsink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver uploads a completed run's SQLite database file to an S3-
// compatible bucket once the run finishes, so a device with limited local
// storage doesn't need to retain every historical run's database on disk.
// There is no equivalent in the original C++ implementation (it only ever
// wrote to a local SQLite file); this follows the teacher's R2 backup
// service's checksum-then-upload-then-rotate shape, carried over to S3.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver loads AWS configuration from the standard credential chain
// (environment, shared config file, or instance role) and returns an
// Archiver targeting bucket, prefixing every uploaded key with prefix.
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventsink: load aws config: %w", err)
	}
	return &S3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// ArchiveInfo describes one previously archived run database.
type ArchiveInfo struct {
	Key       string
	SizeBytes int64
	Uploaded  time.Time
}

// ArchiveFile uploads the file at localPath under the archiver's prefix,
// keyed by name, using the multipart manager so a multi-gigabyte run
// database uploads without buffering the whole file in memory. The file's
// SHA-256 checksum is computed first and attached as object metadata, so a
// later restore can verify the download without re-deriving it.
func (a *S3Archiver) ArchiveFile(ctx context.Context, localPath, name string) error {
	checksum, err := sha256File(localPath)
	if err != nil {
		return fmt.Errorf("eventsink: checksum %s: %w", localPath, err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("eventsink: open %s for archival: %w", localPath, err)
	}
	defer f.Close()

	uploader := manager.NewUploader(a.client)
	key := a.prefix + name
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		Body:     f,
		Metadata: map[string]string{"sha256": checksum},
	})
	if err != nil {
		return fmt.Errorf("eventsink: upload %s to s3://%s/%s: %w", localPath, a.bucket, key, err)
	}
	return nil
}

// ListArchives lists every archived run database under the archiver's
// prefix, newest first.
func (a *S3Archiver) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	var archives []ArchiveInfo
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("eventsink: list s3://%s/%s*: %w", a.bucket, a.prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := ArchiveInfo{Key: strings.TrimPrefix(*obj.Key, a.prefix)}
			if obj.Size != nil {
				info.SizeBytes = *obj.Size
			}
			if obj.LastModified != nil {
				info.Uploaded = *obj.LastModified
			}
			archives = append(archives, info)
		}
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Uploaded.After(archives[j].Uploaded) })
	return archives, nil
}

// RotateOldArchives deletes archived run databases older than retentionDays,
// always keeping at least minKeep of the most recent regardless of age. A
// retentionDays of 0 disables age-based deletion entirely.
func (a *S3Archiver) RotateOldArchives(ctx context.Context, retentionDays, minKeep int) error {
	archives, err := a.ListArchives(ctx)
	if err != nil {
		return fmt.Errorf("eventsink: rotate archives: %w", err)
	}
	if len(archives) <= minKeep {
		return nil
	}
	if retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for i, arc := range archives {
		if i < minKeep || !arc.Uploaded.Before(cutoff) {
			continue
		}
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.prefix + arc.Key),
		})
		if err != nil {
			return fmt.Errorf("eventsink: delete s3://%s/%s%s: %w", a.bucket, a.prefix, arc.Key, err)
		}
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
