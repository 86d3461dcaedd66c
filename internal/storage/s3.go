package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	metaFilename  = "filename"
	metaCreatedAt = "created-at"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps downloads as objects under prefix in bucket. Expiry is
// enforced on read; a bucket lifecycle rule should delete old objects.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewS3Store loads AWS configuration from the default chain, or from the
// named shared profile when profile is set.
func NewS3Store(ctx context.Context, bucket, prefix, region, profile string, ttl time.Duration) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var cfg aws.Config
	var err error
	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return newS3Store(s3.NewFromConfig(cfg), bucket, prefix, ttl), nil
}

func newS3Store(client s3API, bucket, prefix string, ttl time.Duration) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	id := newID()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        bytes.NewReader(obj.Data),
		ContentType: aws.String(obj.ContentType),
		Metadata: map[string]string{
			metaFilename:  obj.Name,
			metaCreatedAt: s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return id, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (*Object, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	created, _ := time.Parse(time.RFC3339, result.Metadata[metaCreatedAt])
	if created.IsZero() && result.LastModified != nil {
		created = *result.LastModified
	}
	if expired(created, s.ttl, s.now()) {
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}

	return &Object{
		Name:        result.Metadata[metaFilename],
		ContentType: aws.ToString(result.ContentType),
		Data:        data,
		CreatedAt:   created,
	}, nil
}

func (s *S3Store) key(id string) string {
	return path.Join(s.prefix, id)
}
