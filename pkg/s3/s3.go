package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/oklog/ulid/v2"
)

var ErrNotConfigured = errors.New("upload archive bucket not configured")

// ItfS3 archives uploaded images so they can be labelled for later training.
type ItfS3 interface {
	ArchiveImage(ctx context.Context, fileName string, contentType string, data []byte) (string, error)
}

type s3Client struct {
	uploader   *s3manager.Uploader
	bucketName string
	prefix     string
}

func New() (ItfS3, error) {
	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, ErrNotConfigured
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	prefix := os.Getenv("UPLOAD_ARCHIVE_PREFIX")
	if prefix == "" {
		prefix = "uploads"
	}

	return &s3Client{
		uploader:   s3manager.NewUploader(sess),
		bucketName: bucket,
		prefix:     prefix,
	}, nil
}

func (s *s3Client) ArchiveImage(ctx context.Context, fileName string, contentType string, data []byte) (string, error) {
	key := archiveKey(s.prefix, fileName, time.Now())

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", fileName, err)
	}

	return out.Location, nil
}

// archiveKey groups objects by day and prefixes the file name with a ULID so
// repeated uploads of the same name never collide.
func archiveKey(prefix, fileName string, t time.Time) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	base = strings.ReplaceAll(base, " ", "_")

	id := ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy())
	return path.Join(prefix, t.UTC().Format("2006/01/02"), fmt.Sprintf("%s-%s", id.String(), base))
}

func newSession() (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}
