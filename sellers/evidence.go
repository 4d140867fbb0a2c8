package main

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

// presignExpiry bounds how long an issued upload URL stays valid.
const presignExpiry = 15 * time.Minute

// EvidencePresigner issues pre-signed S3 PUT URLs so mobile clients upload
// visit evidence directly to the bucket; the backend only ever stores the
// resulting object URL.
type EvidencePresigner struct {
	presign *s3.PresignClient
	bucket  string
	region  string
}

func NewEvidencePresigner(ctx context.Context, bucket string) (*EvidencePresigner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &EvidencePresigner{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		region:  cfg.Region,
	}, nil
}

// UploadURL returns the pre-signed PUT URL and the public object URL the
// client must report back once the upload finishes.
func (p *EvidencePresigner) UploadURL(ctx context.Context, visitID uuid.UUID, filename, contentType string) (uploadURL, objectURL string, err error) {
	if filename == "" || filename != path.Base(filename) {
		return "", "", apperr.New(apperr.ValidationRejected, "invalid_filename",
			"filename must be a bare file name")
	}

	key := fmt.Sprintf("visits/%s/%s", visitID, filename)

	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", apperr.Wrap(apperr.Unreachable, "presign_failed",
			"could not issue evidence upload url", err)
	}

	objectURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
	return req.URL, objectURL, nil
}
