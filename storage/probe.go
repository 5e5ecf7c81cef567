// Package storage verifies output destinations before a run spends encoding
// minutes. A probe writes a small marker object to the destination and
// removes it again; a destination that rejects the marker would also reject
// the produced segments.
package storage

import (
	"context"
	"fmt"

	"vodforge/utils"
)

// ProbeDispatcher dispatches probes by destination kind.
type ProbeDispatcher struct{}

// Probe checks that the destination described by accessInfo is writable.
// Supported kinds: s3, gcs, sftp.
func (ProbeDispatcher) Probe(ctx context.Context, accessInfo map[string]string, kind string) error {
	marker, err := utils.GenerateRandomHex(8)
	if err != nil {
		return fmt.Errorf("failed to generate probe marker: %w", err)
	}
	markerName := ".vodforge-preflight-" + marker

	switch kind {
	case "s3":
		if err := ProbeS3(ctx, accessInfo, markerName); err != nil {
			return fmt.Errorf("s3 probe failed: %w", err)
		}
	case "gcs":
		if err := ProbeGCS(ctx, accessInfo, markerName); err != nil {
			return fmt.Errorf("gcs probe failed: %w", err)
		}
	case "sftp":
		if err := ProbeSFTP(ctx, accessInfo, markerName); err != nil {
			return fmt.Errorf("sftp probe failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown destination kind: %s", kind)
	}
	return nil
}
