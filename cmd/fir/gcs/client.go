// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution.

// Package gcs syncs statute and guideline corpus files with a Google
// Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Client struct {
	storageClient *storage.Client
	ProjectId     string
	BucketName    string
}

func NewClient(ctx context.Context, projectId, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		ProjectId:     projectId,
		BucketName:    bucketName,
	}, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.storageClient.Close()
}

func (c *Client) UploadFile(ctx context.Context, localPath, gcsPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	// Get a writer for the GCS object
	obj := c.storageClient.Bucket(c.BucketName).Object(gcsPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, gcsPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", gcsPath, err)
	}
	return nil
}

// UploadDir uploads every regular file under localDir to the prefix.
// Returns the object paths written.
func (c *Client) UploadDir(ctx context.Context, localDir, gcsPrefix string) ([]string, error) {
	var uploaded []string
	err := filepath.Walk(localDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		gcsPath := path.Join(gcsPrefix, info.Name())
		if err := c.UploadFile(ctx, p, gcsPath); err != nil {
			return err
		}
		uploaded = append(uploaded, gcsPath)
		return nil
	})
	return uploaded, err
}

// DownloadFile fetches one object into localPath, creating parent
// directories as needed.
func (c *Client) DownloadFile(ctx context.Context, gcsPath, localPath string) error {
	reader, err := c.storageClient.Bucket(c.BucketName).Object(gcsPath).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open GCS object %s: %w", gcsPath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, reader); err != nil {
		return fmt.Errorf("failed to copy GCS object %s to %s: %w", gcsPath, localPath, err)
	}
	return nil
}

// DownloadPrefix fetches every object under gcsPrefix into localDir,
// flattening the prefix. Returns the local paths written.
func (c *Client) DownloadPrefix(ctx context.Context, gcsPrefix, localDir string) ([]string, error) {
	it := c.storageClient.Bucket(c.BucketName).Objects(ctx, &storage.Query{Prefix: gcsPrefix})

	var downloaded []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return downloaded, fmt.Errorf("failed to list objects under %s: %w", gcsPrefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue // directory placeholder
		}
		localPath := filepath.Join(localDir, path.Base(attrs.Name))
		if err := c.DownloadFile(ctx, attrs.Name, localPath); err != nil {
			return downloaded, err
		}
		downloaded = append(downloaded, localPath)
	}
	return downloaded, nil
}
