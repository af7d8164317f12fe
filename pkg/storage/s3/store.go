// Package s3 provides an S3-backed Storage driver. S3 has no rename, so
// the temp->final promotion required by write_data_stream is implemented
// as CopyObject followed by a delete of the temp key.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/marmos91/strata/pkg/digest"
	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storeerr"
)

// Name is the versioned registry name for this driver.
const Name = "s3@v1"

// Locator addresses an object by its full S3 key.
type Locator struct {
	Key string `json:"key"`
}

// Config configures an S3 Store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3-compatible endpoint URL (optional; set for
	// Localstack/MinIO).
	Endpoint string

	// KeyPrefix is prepended to every object key, e.g. "strata/".
	KeyPrefix string

	// ForcePathStyle forces path-style addressing, required by
	// Localstack/MinIO.
	ForcePathStyle bool

	// Metrics, if non-nil, is called around every operation. Leave nil for
	// zero instrumentation overhead.
	Metrics storage.Metrics
}

// Store is an S3-backed Storage implementation.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   storage.Metrics

	mu     sync.RWMutex
	closed bool
}

// New creates a Store using an already-constructed S3 client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix, metrics: cfg.Metrics}
}

// NewFromConfig builds an S3 client from cfg and the AWS default credential
// chain, then returns a Store wrapping it.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func (s *Store) Name() string { return Name }

func (s *Store) fullKey(key string) string { return s.keyPrefix + key }

// observeOperation and recordBytes nil-check s.metrics before dispatch: a
// nil storage.Metrics interface value (the zero-overhead default when no
// Metrics is configured) panics if called directly, since there is no
// concrete nil receiver to fall back on.
func (s *Store) observeOperation(operation string, duration time.Duration, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, duration, err)
	}
}

func (s *Store) recordBytes(operation string, n int64) {
	if s.metrics != nil {
		s.metrics.RecordBytes(operation, n)
	}
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}

func (s *Store) WriteData(ctx context.Context, data []byte, d digest.Digest, _ map[string]string) (storage.Locator, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("s3: store is closed")
	}

	start := time.Now()
	key := s.fullKey(d.Path())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	s.observeOperation("PutObject", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}
	s.recordBytes("PutObject", int64(len(data)))

	return Locator{Key: key}, nil
}

func (s *Store) ReadData(ctx context.Context, loc storage.Locator) ([]byte, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not an s3.Locator")
	}

	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(l.Key),
	})
	s.observeOperation("GetObject", time.Since(start), err)
	if err != nil {
		if isNotFoundErr(err) {
			return nil, storeerr.NewNoStorageData(Name, l.Key)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read object body: %w", err)
	}
	s.recordBytes("GetObject", int64(len(data)))
	return data, nil
}

// WriteDataStream uploads to a provisional temp key (S3 PutObject needs no
// pre-declared size, so the provisional digest is only used to namespace
// the temp key), then promotes to the final content-addressed key with
// CopyObject and deletes the temp object. The temp object is deleted on
// every exit path.
func (s *Store) WriteDataStream(ctx context.Context, src io.Reader, getDigest storage.GetDigest, _ map[string]string) (storage.Locator, error) {
	if _, err := getDigest(true); err != nil {
		return nil, err
	}

	tempKey := s.fullKey("tmp/" + uuid.NewString())

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	putStart := time.Now()
	putErr := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(tempKey),
			Body:   bytes.NewReader(data),
		})
		return err
	}()
	s.observeOperation("PutObject", time.Since(putStart), putErr)
	if putErr != nil {
		return nil, fmt.Errorf("s3 put temp object: %w", putErr)
	}
	s.recordBytes("PutObject", int64(len(data)))
	defer s.client.DeleteObject(context.WithoutCancel(ctx), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(tempKey),
	})

	d, err := getDigest(false)
	if err != nil {
		return nil, storeerr.NewStorageDidNotConsumeStream(Name, "")
	}

	finalKey := s.fullKey(d.Path())
	copyStart := time.Now()
	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + tempKey),
		Key:        aws.String(finalKey),
	})
	s.observeOperation("CopyObject", time.Since(copyStart), err)
	if err != nil {
		return nil, fmt.Errorf("s3 copy object to final key: %w", err)
	}

	return Locator{Key: finalKey}, nil
}

func (s *Store) ReadDataStream(ctx context.Context, loc storage.Locator) (io.ReadCloser, error) {
	l, ok := loc.(Locator)
	if !ok {
		return nil, storeerr.New(storeerr.NoStorageData, "locator is not an s3.Locator")
	}

	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(l.Key),
	})
	s.observeOperation("GetObject", time.Since(start), err)
	if err != nil {
		if isNotFoundErr(err) {
			return nil, storeerr.NewNoStorageData(Name, l.Key)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return resp.Body, nil
}

func (s *Store) SerializeConfig(loc storage.Locator) (string, error) {
	l, ok := loc.(Locator)
	if !ok {
		return "", storeerr.New(storeerr.NoStorageData, "locator is not an s3.Locator")
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (s *Store) DeserializeConfig(config string) (storage.Locator, error) {
	var l Locator
	if err := json.Unmarshal([]byte(config), &l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.Storage = (*Store)(nil)
