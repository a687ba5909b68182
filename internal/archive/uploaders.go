package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// SASTokenEnv holds the Azure shared access signature used for uploads
const SASTokenEnv = "AZURE_STORAGE_SAS_TOKEN"

// Uploader puts one object into remote storage
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
	Close() error
}

// NewUploader returns the uploader for loc's backend using ambient credentials
func NewUploader(ctx context.Context, loc Location) (Uploader, error) {
	switch loc.Backend {
	case BackendS3:
		return newS3Uploader(ctx, loc)
	case BackendGCS:
		return newGCSUploader(ctx, loc)
	case BackendAzure:
		return newAzureUploader(loc, os.Getenv(SASTokenEnv))
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", loc.Backend)
	}
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func newS3Uploader(ctx context.Context, loc Location) (*s3Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if loc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(loc.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &s3Uploader{client: s3.NewFromConfig(cfg), bucket: loc.Bucket}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, key string, data []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

func (u *s3Uploader) Close() error { return nil }

type gcsUploader struct {
	client *storage.Client
	bucket string
}

func newGCSUploader(ctx context.Context, loc Location) (*gcsUploader, error) {
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &gcsUploader{client: client, bucket: loc.Bucket}, nil
}

func (u *gcsUploader) Upload(ctx context.Context, key string, data []byte) error {
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/plain"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

func (u *gcsUploader) Close() error { return u.client.Close() }

type azureUploader struct {
	container azblob.ContainerURL
}

func newAzureUploader(loc Location, sasToken string) (*azureUploader, error) {
	raw := fmt.Sprintf("https://%s.blob.core.windows.net/%s", loc.Bucket, loc.Container)
	if sasToken != "" {
		raw += "?" + strings.TrimPrefix(sasToken, "?")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure container URL: %w", err)
	}

	pipeline := azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{})
	return &azureUploader{container: azblob.NewContainerURL(*u, pipeline)}, nil
}

func (u *azureUploader) Upload(ctx context.Context, key string, data []byte) error {
	blob := u.container.NewBlockBlobURL(key)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blob, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "text/plain"},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}
	return nil
}

func (u *azureUploader) Close() error { return nil }
