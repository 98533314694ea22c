// Package archive keeps a copy of each processed message body in Google
// Cloud Storage, laid out as gs://<bucket>/<prefix>/<message_id>/body.txt.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const bodyObject = "body.txt"

// GCSArchiver writes message bodies to one bucket.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiver creates a storage client using Application Default Credentials.
func NewGCSArchiver(ctx context.Context, bucket, prefix string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchiver: create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// ArchiveBody uploads body and returns the gs:// URI of the object.
func (a *GCSArchiver) ArchiveBody(ctx context.Context, messageID, body string) (string, error) {
	name := ObjectName(a.prefix, messageID)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := io.Copy(w, strings.NewReader(body)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveBody %s: copy to GCS writer: %w", messageID, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveBody %s: finalize upload: %w", messageID, err)
	}

	return "gs://" + a.bucket + "/" + name, nil
}

// ReadBody downloads the archived body of messageID.
func (a *GCSArchiver) ReadBody(ctx context.Context, messageID string) (string, error) {
	return a.Fetch(ctx, "gs://"+a.bucket+"/"+ObjectName(a.prefix, messageID))
}

// Fetch downloads the object at a gs:// URI.
func (a *GCSArchiver) Fetch(ctx context.Context, uri string) (string, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return "", err
	}

	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("Fetch: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("Fetch: read GCS object: %w", err)
	}
	return string(data), nil
}

// ObjectName is the object path for a message body.
func ObjectName(prefix, messageID string) string {
	return path.Join(strings.Trim(prefix, "/"), messageID, bodyObject)
}

// ParseURI splits gs://bucket/path into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
