// Package objectstore hosts oversize artifacts in S3 and hands out presigned
// download links.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"letterpod/internal/delivery"
	"letterpod/internal/services"
)

const stageName = "objectstore"

// Config selects the bucket and AWS credentials. Empty Region and Profile fall
// back to the default AWS credential chain.
type Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Profile      string
	UsePathStyle bool
	// Endpoint targets an S3-compatible service instead of AWS.
	Endpoint string
}

type putAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store uploads artifacts and presigns GET links for them.
type Store struct {
	bucket  string
	prefix  string
	put     putAPI
	presign presignAPI
	now     func() time.Time
}

// New loads AWS configuration and builds a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "bucket is required", nil)
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newWithAPI(cfg, client, s3.NewPresignClient(client)), nil
}

func newWithAPI(cfg Config, put putAPI, presign presignAPI) *Store {
	return &Store{
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		put:     put,
		presign: presign,
		now:     time.Now,
	}
}

// Upload stores data under key and returns a link valid for ttl.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string, ttl time.Duration) (delivery.Link, error) {
	if s == nil || s.put == nil {
		return delivery.Link{}, services.Wrap(services.ErrConfiguration, stageName, "upload", "store not configured", nil)
	}
	fullKey := s.objectKey(key)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.put.PutObject(ctx, in); err != nil {
		return delivery.Link{}, classify("upload", err)
	}

	issued := s.now()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return delivery.Link{}, classify("presign", err)
	}
	return delivery.Link{URL: req.URL, Key: fullKey, Expires: issued.Add(ttl)}, nil
}

func (s *Store) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, op, "request timed out", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "EntityTooLarge", "InvalidArgument":
			return services.Wrap(services.ErrConstraint, stageName, op, apiErr.ErrorCode(), err)
		case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return services.Wrap(services.ErrConfiguration, stageName, op, apiErr.ErrorCode(), err)
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return services.Wrap(services.ErrTransient, stageName, op, apiErr.ErrorCode(), err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		msg := fmt.Sprintf("status %d", code)
		switch {
		case code == http.StatusTooManyRequests || code >= 500:
			return services.Wrap(services.ErrTransient, stageName, op, msg, err)
		case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound:
			return services.Wrap(services.ErrConfiguration, stageName, op, msg, err)
		case code == http.StatusRequestEntityTooLarge:
			return services.Wrap(services.ErrConstraint, stageName, op, msg, err)
		default:
			return services.Wrap(services.ErrFatal, stageName, op, msg, err)
		}
	}
	if apiErr != nil {
		return services.Wrap(services.ErrFatal, stageName, op, apiErr.ErrorCode(), err)
	}
	return services.Wrap(services.ErrTransient, stageName, op, "request failed", err)
}
