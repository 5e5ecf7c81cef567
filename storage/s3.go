package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"vodforge/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProbeS3 uploads a marker object below the destination base path and
// deletes it again. Fully self-contained, initializing its own client from
// the provided keys.
func ProbeS3(ctx context.Context, accessInfo map[string]string, markerName string) error {
	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	bucket := accessInfo["bucket"]
	key := path.Join(strings.TrimPrefix(accessInfo["basePath"], "/"), markerName)

	s3Client := s3.New(s3.Options{
		Region:      accessInfo["region"],
		Credentials: creds,
	})

	uploader := manager.NewUploader(s3Client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader("vodforge preflight"),
	})
	if err != nil {
		return fmt.Errorf("failed to write marker %s to bucket %s: %w", key, bucket, err)
	}

	_, err = s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// The encoding service needs delete permission to overwrite
		// existing files, so a failed delete fails the probe too.
		return fmt.Errorf("failed to delete marker %s from bucket %s: %w", key, bucket, err)
	}

	logger.Debugf("S3 probe ok for bucket '%s' at '%s'", bucket, key)
	return nil
}
