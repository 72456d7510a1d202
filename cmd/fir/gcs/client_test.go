// Copyright (C) 2025 The FIR Legal Analysis System Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0.html> for the full license text.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "/nonexistent/path/to/key.json")
	if err == nil {
		t.Fatal("NewClient with non-existent SA key should return error")
	}
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Error should mention SA key not found, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/to/key.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestNewClient_EmptyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "")
	if err == nil {
		t.Fatal("NewClient with empty SA key path should return error")
	}
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	invalidKeyPath := filepath.Join(tmpDir, "invalid_key.json")
	err := os.WriteFile(invalidKeyPath, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err = NewClient(ctx, "test-project", "test-bucket", invalidKeyPath)
	if err == nil {
		t.Fatal("NewClient with invalid credentials file should return error")
	}
	if !strings.Contains(err.Error(), "failed to create GCS storage client") {
		t.Errorf("Error should mention failed to create client, got: %v", err)
	}
}

// ============================================================================
// UploadFile / UploadDir Tests (error paths that don't require GCS)
// ============================================================================

func TestClient_UploadFile_NonExistentLocalFile(t *testing.T) {
	// The local file validation happens before any GCS operation.
	client := &Client{
		storageClient: nil,
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadFile(ctx, "/nonexistent/file/path.jsonl", "corpus/path.jsonl")
	if err == nil {
		t.Fatal("UploadFile with non-existent local file should return error")
	}
	if !strings.Contains(err.Error(), "failed to open the local file") {
		t.Errorf("Error should mention failed to open file, got: %v", err)
	}
}

func TestClient_UploadDir_NonExistentDirectory(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	ctx := context.Background()
	uploaded, err := client.UploadDir(ctx, "/nonexistent/directory/path", "corpus")
	if err == nil {
		t.Fatal("UploadDir with non-existent directory should return error")
	}
	if len(uploaded) != 0 {
		t.Errorf("expected no uploaded objects, got %v", uploaded)
	}
}

func TestClient_Fields(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "fir-corpus-project",
		BucketName:    "fir-corpus-bucket",
	}

	if client.ProjectId != "fir-corpus-project" {
		t.Errorf("ProjectId = %q, want %q", client.ProjectId, "fir-corpus-project")
	}
	if client.BucketName != "fir-corpus-bucket" {
		t.Errorf("BucketName = %q, want %q", client.BucketName, "fir-corpus-bucket")
	}
}

// ============================================================================
// Integration Tests (require real GCS credentials)
// ============================================================================

func gcsTestEnv(t *testing.T) (keyPath, projectID, bucketName string) {
	t.Helper()
	keyPath = os.Getenv("GCS_TEST_SA_KEY_PATH")
	projectID = os.Getenv("GCS_TEST_PROJECT_ID")
	bucketName = os.Getenv("GCS_TEST_BUCKET_NAME")
	if keyPath == "" || projectID == "" || bucketName == "" {
		t.Skip("Skipping integration test: GCS_TEST_SA_KEY_PATH, GCS_TEST_PROJECT_ID, and GCS_TEST_BUCKET_NAME not set")
	}
	return keyPath, projectID, bucketName
}

func TestClient_UploadDownloadRoundTrip_Integration(t *testing.T) {
	keyPath, projectID, bucketName := gcsTestEnv(t)

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "ndps.jsonl")
	content := []byte(`{"act":"NDPS","section_number":"8","content":"Prohibition of certain operations."}`)
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := client.UploadFile(ctx, testFile, "test/ndps.jsonl"); err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}

	downloadPath := filepath.Join(tmpDir, "downloaded.jsonl")
	if err := client.DownloadFile(ctx, "test/ndps.jsonl", downloadPath); err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}

	got, err := os.ReadFile(downloadPath)
	if err != nil {
		t.Fatalf("Reading downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("downloaded content mismatch: got %q", got)
	}
}
