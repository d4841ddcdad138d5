package s3infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/storefront-pipeline/internal/config"
	"github.com/storefront-pipeline/internal/infrastructure/awscfg"
)

// deleteObjectsLimit is the S3 maximum number of keys per DeleteObjects call.
const deleteObjectsLimit = 1000

type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// MediaStore manages uploaded product and review images. Objects uploaded on
// behalf of a user live under UserPrefix(userID).
type MediaStore struct {
	client s3API
	bucket string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awscfg.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep := awscfg.Endpoint(cfg); ep != nil {
			o.BaseEndpoint = ep
			o.UsePathStyle = true
		}
	}), nil
}

func NewMediaStore(client *s3.Client, bucket string) *MediaStore {
	return &MediaStore{client: client, bucket: bucket}
}

// UserPrefix is the key prefix of every object owned by userID.
func UserPrefix(userID string) string {
	return "users/" + strings.Trim(userID, "/") + "/"
}

// DeletePrefix removes every object whose key starts with prefix and returns
// how many were deleted. An empty prefix is rejected.
func (m *MediaStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" || prefix == "/" {
		return 0, fmt.Errorf("refusing to delete an empty prefix")
	}
	deleted := 0
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		for start := 0; start < len(ids); start += deleteObjectsLimit {
			end := min(start+deleteObjectsLimit, len(ids))
			out, err := m.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(m.bucket),
				Delete: &types.Delete{Objects: ids[start:end], Quiet: aws.Bool(true)},
			})
			if err != nil {
				return deleted, fmt.Errorf("s3 delete objects: %w", err)
			}
			if len(out.Errors) > 0 {
				return deleted + (end - start - len(out.Errors)), fmt.Errorf("s3 delete objects: %d keys failed, first %s: %s",
					len(out.Errors), aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
			}
			deleted += end - start
		}
	}
	return deleted, nil
}
