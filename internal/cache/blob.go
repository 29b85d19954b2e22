package cache

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// BlobStore keeps entries as objects in a gocloud.dev bucket: a local
// directory (file://), process memory (mem://) or an S3-compatible bucket
// such as R2 (s3://).
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

// OpenBlobStore opens the bucket at bucketURL. For file:// URLs the
// directory is created if needed.
func OpenBlobStore(ctx context.Context, bucketURL string) (*BlobStore, error) {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url: %w", err)
	}
	if u.Scheme == "file" {
		if err := os.MkdirAll(u.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return NewBlobStore(bucket), nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, value []byte) error {
	return s.bucket.WriteAll(ctx, key, value, &blob.WriterOptions{
		ContentType: contentTypeFor(key),
	})
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}
