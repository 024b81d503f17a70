package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/xxxsen/livinglib/internal/config"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

const defaultPresignTTL = 15 * time.Minute

// ObjectStore reads objects from a remote bucket.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	URL(ctx context.Context, bucket, key string) (string, error)
}

type s3Store struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	endpoint   string
	publicURL  string
	useSSL     bool
	presignTTL time.Duration
}

func NewS3Store(ctx context.Context, cfg *config.S3Config) (ObjectStore, error) {
	if cfg == nil || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 secret_id/secret_key are required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.SecretID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	endpoint := ""
	if cfg.Endpoint != "" {
		endpoint = withScheme(cfg.Endpoint, cfg.UseSSL)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	ttl := time.Duration(cfg.PresignTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &s3Store{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		endpoint:   endpoint,
		publicURL:  strings.TrimSuffix(cfg.PublicURL, "/"),
		useSSL:     cfg.UseSSL,
		presignTTL: ttl,
	}, nil
}

func (s *s3Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s/%s not found: %w", bucket, key, appErr.ErrNotFound)
		}
		return nil, fmt.Errorf("download %s/%s: %v: %w", bucket, key, err, appErr.ErrUpstream)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %v: %w", bucket, key, err, appErr.ErrUpstream)
	}
	return data, nil
}

// URL returns the public object URL when a public base is configured and a
// presigned GET URL otherwise.
func (s *s3Store) URL(ctx context.Context, bucket, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if s.publicURL != "" {
		return s.publicURL + "/" + bucket + "/" + key, nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %v: %w", bucket, key, err, appErr.ErrUpstream)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

func withScheme(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimSuffix(endpoint, "/")
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: strings.TrimSuffix(endpoint, "/")}
	return u.String()
}
