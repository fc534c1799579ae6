package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	storage, err := NewS3Storage(context.Background(), t.TempDir(), testS3Config("http://localhost:4566"))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != "test-bucket" {
		t.Errorf("bucket = %v, want %v", storage.bucket, "test-bucket")
	}
	if storage.region != "us-east-1" {
		t.Errorf("region = %v, want %v", storage.region, "us-east-1")
	}
}

func TestS3Storage_StagesLocally(t *testing.T) {
	storage, err := NewS3Storage(context.Background(), t.TempDir(), testS3Config("http://localhost:4566"))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	ctx := context.Background()

	path, err := storage.SaveTemp(ctx, "staged", bytes.NewReader([]byte("test data")))
	if err != nil {
		t.Fatalf("SaveTemp() error = %v", err)
	}

	reader, err := storage.LoadTemp(ctx, path)
	if err != nil {
		t.Fatalf("LoadTemp() error = %v", err)
	}
	content, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(content) != "test data" {
		t.Errorf("got %q, want %q", string(content), "test data")
	}

	if err := storage.CleanupTemp(ctx, []string{path}); err != nil {
		t.Fatalf("CleanupTemp() error = %v", err)
	}
}

func TestS3Storage_Put_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if r.URL.Path != "/test-bucket/results/task-1.mp4" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("unexpected content type: %s", ct)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if !strings.Contains(string(body), "video content") {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage, err := NewS3Storage(context.Background(), t.TempDir(), testS3Config(server.URL))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	url, err := storage.Put(context.Background(), "/results/task-1.mp4", bytes.NewReader([]byte("video content")))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	expectedURL := server.URL + "/test-bucket/results/task-1.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}

func TestS3Storage_Put_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code></Error>`))
	}))
	defer server.Close()

	storage, err := NewS3Storage(context.Background(), t.TempDir(), testS3Config(server.URL))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	_, err = storage.Put(context.Background(), "x.mp4", bytes.NewReader([]byte("data")))
	if err == nil || !strings.Contains(err.Error(), "upload to S3") {
		t.Errorf("expected upload error, got %v", err)
	}
}

func TestS3Storage_Put_EmptyKey(t *testing.T) {
	storage, err := NewS3Storage(context.Background(), t.TempDir(), testS3Config("http://localhost:4566"))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	_, err = storage.Put(context.Background(), "/", bytes.NewReader(nil))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestS3Storage_ObjectURL(t *testing.T) {
	s := &S3Storage{bucket: "b", region: "eu-west-1"}
	if got := s.objectURL("k.mp4"); got != "https://b.s3.eu-west-1.amazonaws.com/k.mp4" {
		t.Errorf("objectURL() = %v", got)
	}
}
