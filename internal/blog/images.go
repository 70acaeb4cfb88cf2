package blog

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the slice of the S3 API the image store uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ImageStore uploads post images to an S3 bucket.
type ImageStore struct {
	client S3Client
	bucket string
}

func NewImageStore(client S3Client, bucket string) *ImageStore {
	return &ImageStore{client: client, bucket: bucket}
}

func (s *ImageStore) Upload(ctx context.Context, fileName string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", fileName, err)
	}
	return nil
}
