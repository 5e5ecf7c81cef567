package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"vodforge/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ProbeGCS writes a marker object to a Google Cloud Storage bucket and
// deletes it again, using a service account key provided as base64 JSON in
// accessInfo["credentialsJSON"].
func ProbeGCS(ctx context.Context, accessInfo map[string]string, markerName string) error {
	credentialsJSON, err := base64.StdEncoding.DecodeString(accessInfo["credentialsJSON"])
	if err != nil {
		credentialsJSON = []byte(accessInfo["credentialsJSON"])
	}
	bucketName := accessInfo["bucket"]
	objectName := path.Join(strings.TrimPrefix(accessInfo["basePath"], "/"), markerName)

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	obj := client.Bucket(bucketName).Object(objectName)

	wc := obj.NewWriter(ctx)
	if _, err := wc.Write([]byte("vodforge preflight")); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	if err := obj.Delete(ctx); err != nil {
		return fmt.Errorf("deleting marker %s: %w", objectName, err)
	}

	logger.Debugf("GCS probe ok for bucket '%s' at '%s'", bucketName, objectName)
	return nil
}
