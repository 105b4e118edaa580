package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// routeArtifact is the object the edge layer reads to route a tenant's
// traffic to its dedicated deployment.
type routeArtifact struct {
	TenantSlug string `json:"tenant_slug"`
	Endpoint   string `json:"endpoint"`
	UpdatedAt  string `json:"updated_at"`
}

// Store writes routing artifacts to object storage under
// s3://<bucket>/<prefix>/<slug>.json.
type Store struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewStore creates a Store. Region and credentials come from the
// environment (AWS_REGION, AWS_ACCESS_KEY_ID/SECRET etc.).
func NewStore(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	return &Store{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// WriteRoute uploads the slug-to-endpoint mapping and returns the object
// key. Re-writing an existing route overwrites the object, so a retried
// promotion converges on the same artifact.
func (s *Store) WriteRoute(ctx context.Context, tenantSlug, endpoint string) (string, error) {
	artifact := routeArtifact{
		TenantSlug: tenantSlug,
		Endpoint:   endpoint,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("marshal route artifact: %w", err)
	}

	objectKey := path.Join(s.prefix, fmt.Sprintf("%s.json", tenantSlug))

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}
