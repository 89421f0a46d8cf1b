package storage

import (
	"alcyxob/upload-broker/internal/config"
	"alcyxob/upload-broker/internal/domain"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Backend implements Backend on Amazon S3 or any S3-compatible endpoint.
type s3Backend struct {
	client        *s3.Client        // Regular client for HeadObject
	presignClient *s3.PresignClient // Special client for generating presigned URLs
	bucketName    string
}

// NewS3Backend creates an S3 backend. Static credentials are used when configured,
// otherwise the default AWS credential chain applies.
func NewS3Backend(ctx context.Context, cfg config.S3Config) (Backend, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("%w: s3 bucket_name is not configured", ErrBackendUnavailable)
	}

	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrBackendUnavailable, err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Required by most S3-compatible services (MinIO, Spaces)
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &s3Backend{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
	}, nil
}

func (s *s3Backend) Name() domain.Backend { return domain.BackendAWS }

// IssueWriteGrant presigns a PUT bound to bucket, key, content type and size.
// The client must send the same Content-Type and body length or the signature will not match.
func (s *s3Backend) IssueWriteGrant(ctx context.Context, req GrantRequest) (*domain.WriteGrant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ttl := req.ttl()
	contentType := req.contentType()

	presigned, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(req.Key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(req.Size), // Without a length only host is signed
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put object %q: %w", req.Key, err)
	}

	headers := clientHeaders(presigned.SignedHeader)
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = contentType
	}
	return putGrant(presigned.URL, headers, time.Now().Add(ttl)), nil
}

// clientHeaders returns the signed headers the uploader must send itself.
// Host and Content-Length are set by any HTTP client from the URL and body.
func clientHeaders(signed http.Header) map[string]string {
	headers := make(map[string]string, len(signed))
	for name, values := range signed {
		switch http.CanonicalHeaderKey(name) {
		case "Host", "Content-Length":
			continue
		}
		if len(values) > 0 {
			headers[http.CanonicalHeaderKey(name)] = values[0]
		}
	}
	return headers
}

// Exists issues a HeadObject; only a 404 counts as absent.
func (s *s3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("head object %q: %w", key, err)
}
