// Package imagestore uploads user images to S3-compatible object storage.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appcfg "github.com/cxbootcamp/premiers/internal/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ImageStore struct {
	client    putObjectAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

func New(ctx context.Context, cfg appcfg.S3) (*ImageStore, error) {
	const op = "imagestore.New"

	awsConfig, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(cfg.Region),
		awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &ImageStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// Save uploads the image bytes under a fresh collision-free name and returns
// that name together with the public URL it is served from.
func (s *ImageStore) Save(ctx context.Context, data []byte, ext string, contentType string) (string, string, error) {
	const op = "imagestore.Save"

	name := s.generateName(ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return name, s.publicURL + "/" + name, nil
}

// generateName builds "<uuid-hex>_<unix-ms>.<ext>". The random part alone is
// unique; the timestamp keeps listings roughly chronological.
func (s *ImageStore) generateName(ext string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s_%d.%s", id, s.now().UnixMilli(), strings.TrimPrefix(ext, "."))
}
