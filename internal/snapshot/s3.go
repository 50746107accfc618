package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/systemshift/supplygraph/internal/errs"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Source reads snapshots stored as {Prefix}/{n}.json objects.
type S3Source struct {
	client *minio.Client
	bucket string
	keys   []string
}

func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
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
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	var names []string
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, ".json") {
			names = append(names, obj.Key)
		}
	}
	keys, err := sortNumeric(names)
	if err != nil {
		return nil, err
	}
	return &S3Source{client: client, bucket: bucket, keys: keys}, nil
}

func (s *S3Source) Len() int { return len(s.keys) }

func (s *S3Source) Fetch(ctx context.Context, t int) (*Snapshot, error) {
	if err := CheckIndex(t, len(s.keys)); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.keys[t], minio.GetObjectOptions{})
	if err != nil {
		return nil, errs.Unavailable(t, err)
	}
	defer obj.Close()

	snap, err := Decode(obj)
	if err != nil {
		return nil, errs.Unavailable(t, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.keys[t], err))
	}
	return snap, nil
}
