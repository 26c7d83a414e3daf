package blob

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/oops"
)

// S3Config addresses an S3 compatible bucket (AWS or MinIO).
type S3Config struct {
	Region    string
	Endpoint  string // optional, e.g. http://localhost:9000 for MinIO
	AccessKey string
	SecretKey string
	Bucket    string
}

// s3API is the part of *s3.Client the store needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	client s3API
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code("BLOB_INIT_FAILED").With("bucket", cfg.Bucket).Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg.Bucket), nil
}

func newS3Store(client s3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, body io.Reader) (string, error) {
	data, ref, contentType, err := readImage(body)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ref),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", oops.Code("BLOB_PUT_FAILED").With("bucket", s.bucket).With("ref", ref).Wrap(err)
	}
	return ref, nil
}

func (s *S3Store) Open(ctx context.Context, ref string) (Object, error) {
	if !ValidRef(ref) {
		return Object{}, ErrInvalidRef
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, oops.Code("BLOB_OPEN_FAILED").With("bucket", s.bucket).With("ref", ref).Wrap(err)
	}

	obj := Object{Body: out.Body, ContentType: ContentTypeOf(ref)}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// Delete removes ref. S3 answers a delete of a missing key with success.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	if !ValidRef(ref) {
		return ErrInvalidRef
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return oops.Code("BLOB_DELETE_FAILED").With("bucket", s.bucket).With("ref", ref).Wrap(err)
	}
	return nil
}
