package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3API is the part of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one object per run in a bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store connects with the default credential chain. Endpoint, when
// set, points the client at an S3 compatible service.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithClient returns a store over an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(pid uuid.UUID) string {
	if s.prefix == "" {
		return objectName(pid)
	}
	return path.Join(s.prefix, objectName(pid))
}

// Put uploads rec.
func (s *S3Store) Put(ctx context.Context, rec *Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rec.PID)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload run %v to S3: %w", rec.PID, err)
	}
	return nil
}

// Get downloads the record of run pid.
func (s *S3Store) Get(ctx context.Context, pid uuid.UUID) (*Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(pid)),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %v from S3: %w", pid, err)
	}
	defer out.Body.Close()
	return Decode(out.Body)
}

// List returns the stored runs ordered by PID.
func (s *S3Store) List(ctx context.Context) ([]uuid.UUID, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}
	var pids []uuid.UUID
	for {
		out, err := s.client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs in S3: %w", err)
		}
		for _, obj := range out.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if !strings.HasSuffix(name, extension) {
				continue
			}
			pid, err := uuid.Parse(strings.TrimSuffix(name, extension))
			if err != nil {
				continue
			}
			pids = append(pids, pid)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i].String() < pids[j].String() })
	return pids, nil
}
