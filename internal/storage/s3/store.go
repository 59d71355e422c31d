// Package s3 implements storage.ObjectStore on an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/storage"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects request.
const maxDeleteBatch = 1000

// API defines the subset of the S3 client interface used by the store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store implements storage.ObjectStore using an S3-compatible backend.
type Store struct {
	client API
	logger zerolog.Logger
}

// New creates a new S3 store with the given client.
// The client must be pre-configured with credentials, region and endpoint.
func New(client API, logger zerolog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	return &Store{
		client: client,
		logger: logger.With().Str("store", "s3").Logger(),
	}, nil
}

// GetObject opens the referenced range of an object with a ranged GET.
func (s *Store) GetObject(ctx context.Context, ref storage.ObjectReference) (io.ReadCloser, error) {
	key, err := storage.CleanName(ref.Name)
	if err != nil {
		return nil, err
	}
	if ref.Offset < 0 || ref.Size < 0 {
		return nil, fmt.Errorf("s3: invalid range %d+%d", ref.Offset, ref.Size)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(key),
	}
	if r := rangeHeader(ref.Offset, ref.Size); r != "" {
		input.Range = aws.String(r)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrObjectNotFound, ref.Bucket, key)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}

	return out.Body, nil
}

// PutObject uploads everything read from r.
// The payload is buffered in memory to learn its length before upload.
func (s *Store) PutObject(ctx context.Context, ref storage.ObjectReference, r io.Reader) (storage.ObjectReference, error) {
	key, err := storage.CleanName(ref.Name)
	if err != nil {
		return storage.ObjectReference{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectReference{}, fmt.Errorf("s3: reading data: %w", err)
	}

	if err := s.put(ctx, ref.Bucket, key, data); err != nil {
		return storage.ObjectReference{}, err
	}

	return storage.ObjectReference{
		Bucket: ref.Bucket,
		Name:   key,
		Size:   int64(len(data)),
	}, nil
}

// PutObjects uploads every payload. It stops at the first failure.
func (s *Store) PutObjects(ctx context.Context, bucket string, writes []storage.ObjectWrite) error {
	for _, w := range writes {
		key, err := storage.CleanName(w.Name)
		if err != nil {
			return err
		}
		if err := s.put(ctx, bucket, key, w.Data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3: put object %s: %w", key, err)
	}

	s.logger.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("size", len(data)).
		Msg("object stored")
	return nil
}

// RemoveObject deletes one object. S3 DeleteObject is idempotent.
func (s *Store) RemoveObject(ctx context.Context, ref storage.ObjectReference) error {
	key, err := storage.CleanName(ref.Name)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object: %w", err)
	}
	return nil
}

// RemoveObjects deletes the named objects with batched DeleteObjects requests.
func (s *Store) RemoveObjects(ctx context.Context, bucket string, names []string) error {
	ids := make([]types.ObjectIdentifier, 0, len(names))
	for _, name := range names {
		key, err := storage.CleanName(name)
		if err != nil {
			return err
		}
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}

	var errs []error
	for start := 0; start < len(ids); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(ids))

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: ids[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("s3: delete objects: %w", err)
		}

		for _, e := range out.Errors {
			if aws.ToString(e.Code) == "NoSuchKey" {
				continue
			}
			errs = append(errs, fmt.Errorf("s3: delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	return errors.Join(errs...)
}

// rangeHeader builds an HTTP Range value. S3 ranges are inclusive.
// An empty result means the whole object.
func rangeHeader(offset, size int64) string {
	switch {
	case size > 0:
		return fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)
	case offset > 0:
		return fmt.Sprintf("bytes=%d-", offset)
	default:
		return ""
	}
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
