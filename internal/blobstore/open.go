// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package blobstore

import (
	"context"
	"fmt"

	"github.com/tomtom215/ruvector/internal/config"
)

// Open builds the configured backend wrapped with metrics.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.BlobStore {
	case "", "memory":
		s = NewMemory()
	case "local":
		s, err = NewLocal(cfg.LocalPath)
	case "minio":
		s, err = OpenMinIO(ctx, MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
		})
	case "s3":
		s, err = OpenS3(ctx, S3Config{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown blob store %q", cfg.BlobStore)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s), nil
}
