package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// MinioStore keeps objects in an S3-compatible bucket.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to the endpoint and checks that the bucket exists.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(opts.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if opts.AccessKey == "" || opts.SecretKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", opts.Bucket)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, opts.Bucket)
	}

	return &MinioStore{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s *MinioStore) Backend() string { return "minio" }

func (s *MinioStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	record(s.Backend(), "save", err)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return s.publicURL + "/" + name, nil
}

// Delete removes the object behind ref. References outside the bucket URL are ignored.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, s.publicURL+"/")
	if !ok || key == "" {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	record(s.Backend(), "delete", err)
	return err
}
