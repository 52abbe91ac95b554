package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pyscope/internal/core/config"
)

// S3Store keeps files as objects named <owner>/<filename> in one bucket.
type S3Store struct {
	client   *minio.Client
	bucket   string
	region   string
	policy Policy

	// bucketMu guards bucketOK. Failures are not cached, so the next call
	// checks the bucket again.
	bucketMu sync.Mutex
	bucketOK bool
}

var _ Store = (*S3Store)(nil)

func NewS3Store(cfg config.S3Storage, policy Policy) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket, region: region, policy: policy}, nil
}

func (s *S3Store) Backend() string { return config.BackendS3 }

func (s *S3Store) Close() error { return nil }

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketOK {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	}
	s.bucketOK = true
	return nil
}

func (s *S3Store) Read(ctx context.Context, owner, filename string) ([]byte, error) {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return nil, err
	}
	record(s.Backend(), opRead)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, storeError(err, s.Backend(), opRead, owner)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(owner, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readError(err, owner, filename)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(err, owner, filename)
	}
	return data, nil
}

func (s *S3Store) Write(ctx context.Context, owner, filename string, data []byte) error {
	if err := s.policy.CheckWrite(owner, filename, data); err != nil {
		return err
	}
	record(s.Backend(), opWrite)
	if err := s.ensureBucket(ctx); err != nil {
		return storeError(err, s.Backend(), opWrite, owner)
	}
	if data == nil {
		data = []byte{}
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectKey(owner, filename), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/x-python; charset=utf-8",
	})
	if err != nil {
		return storeError(err, s.Backend(), opWrite, owner)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, owner, filename string) error {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return err
	}
	record(s.Backend(), opDelete)
	if err := s.ensureBucket(ctx); err != nil {
		return storeError(err, s.Backend(), opDelete, owner)
	}

	key := objectKey(owner, filename)
	// RemoveObject succeeds for missing keys, so stat first.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.readError(err, owner, filename)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return storeError(err, s.Backend(), opDelete, owner)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, owner string) ([]string, error) {
	if err := s.policy.CheckOwner(owner); err != nil {
		return nil, err
	}
	record(s.Backend(), opList)
	if err := s.ensureBucket(ctx); err != nil {
		return nil, storeError(err, s.Backend(), opList, owner)
	}

	prefix := owner + "/"
	names := make([]string, 0, 16)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, storeError(obj.Err, s.Backend(), opList, owner)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) readError(err error, owner, filename string) error {
	if isNoSuchKey(err) {
		return notFound(owner, filename)
	}
	return storeError(err, s.Backend(), opRead, owner)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

func objectKey(owner, filename string) string {
	return owner + "/" + filename
}
