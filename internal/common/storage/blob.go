// Package storage persists generated files in a gocloud blob bucket
// (file://, s3://, mem://).
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

type Store struct {
	bucket *blob.Bucket
	prefix string
}

// Open opens the bucket at bucketURL. prefix is prepended to every key.
func Open(ctx context.Context, bucketURL, prefix string) (*Store, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewStore(b, prefix), nil
}

func NewStore(b *blob.Bucket, prefix string) *Store {
	return &Store{bucket: b, prefix: strings.Trim(prefix, "/")}
}

// Put writes content under key and returns the full object key.
func (s *Store) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	full := s.key(key)
	if err := s.bucket.WriteAll(ctx, full, content, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("write %s: %w", full, err)
	}
	return full, nil
}

// Get reads an object previously written with Put. key is the full key Put returned.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *Store) Close() error {
	return s.bucket.Close()
}

func (s *Store) key(name string) string {
	name = sanitizeKey(name)
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// sanitizeKey strips leading slashes and parent references.
func sanitizeKey(k string) string {
	k = strings.ReplaceAll(k, "\\", "/")
	k = path.Clean("/" + k)
	return strings.TrimPrefix(k, "/")
}
