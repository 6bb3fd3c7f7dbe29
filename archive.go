package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Archiver keeps a copy of a delivered clip. It is best-effort.
type Archiver interface {
	Archive(ctx context.Context, userID int64, filePath string)
}

type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
	newID  func() string
}

func NewS3Archive(ctx context.Context, cfg ArchiveConfig) (*S3Archive, error) {
	options := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		options = append(options, config.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		options = append(options, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}
	s3Config, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) { o.UsePathStyle = cfg.Endpoint != "" })
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, newID: newFileID}, nil
}

func (a *S3Archive) key(userID int64) string {
	return path.Join(a.prefix, fmt.Sprint(userID), a.newID()+".mp4")
}

func (a *S3Archive) Archive(ctx context.Context, userID int64, filePath string) {
	file, err := os.Open(filePath)
	if err != nil {
		log.Warn().Err(err).Str("path", filePath).Msg("failed to open the clip for archiving")
		return
	}
	defer file.Close()

	key := a.key(userID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		log.Warn().Err(err).Int64("user", userID).Str("key", key).Msg("failed to archive the clip")
		return
	}
	log.Debug().Int64("user", userID).Str("bucket", a.bucket).Str("key", key).Msg("archived the clip")
}
