// Package storage holds ticket attachment objects. Objects live in named
// buckets under a key such as "{ticket_id}/{millis}-{filename}" and are
// write-once: uploading to an existing key fails instead of overwriting.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrObjectExists  = errors.New("object already exists")
	ErrInvalidBucket = errors.New("invalid bucket name")
)

// MaxFileSize is the maximum allowed object size (25 MB)
const MaxFileSize = 25 * 1024 * 1024

const metaDir = ".meta"

// Object is a stored object opened for reading
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStore defines the interface for attachment object storage
type ObjectStore interface {
	// Upload writes content under bucket/objectPath. It never overwrites:
	// an existing key yields ErrObjectExists.
	Upload(ctx context.Context, bucket, objectPath string, content io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, bucket, objectPath string) (*Object, error)
	Delete(ctx context.Context, bucket, objectPath string) error
	// PublicURL is the address at which the object is served
	PublicURL(bucket, objectPath string) string
	HealthCheck(ctx context.Context) error
}

type objectMeta struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// localStore implements ObjectStore on the local filesystem
type localStore struct {
	basePath      string
	publicBaseURL string
	maxSize       int64
}

// NewLocalStore creates a filesystem-backed ObjectStore rooted at basePath.
// publicBaseURL is the externally reachable API origin.
func NewLocalStore(basePath, publicBaseURL string) (ObjectStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize:       MaxFileSize,
	}, nil
}

func validateBucket(bucket string) error {
	if bucket == "" || strings.HasPrefix(bucket, ".") ||
		strings.ContainsAny(bucket, `/\`) || strings.Contains(bucket, "..") {
		return ErrInvalidBucket
	}
	return nil
}

// validatePath ensures the object path resolves inside root
func validatePath(root, objectPath string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(objectPath))

	if objectPath == "" || filepath.IsAbs(cleanPath) || strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	absPath, err := filepath.Abs(filepath.Join(root, cleanPath))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// resolve returns the data and metadata locations of an object
func (s *localStore) resolve(bucket, objectPath string) (string, string, error) {
	if err := validateBucket(bucket); err != nil {
		return "", "", err
	}
	dataPath, err := validatePath(filepath.Join(s.basePath, bucket), objectPath)
	if err != nil {
		return "", "", err
	}
	metaPath, err := validatePath(filepath.Join(s.basePath, metaDir, bucket), objectPath+".json")
	if err != nil {
		return "", "", err
	}
	return dataPath, metaPath, nil
}

// Upload stores content and returns the number of bytes written
func (s *localStore) Upload(ctx context.Context, bucket, objectPath string, content io.Reader, contentType string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dataPath, metaPath, err := s.resolve(bucket, objectPath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return 0, ErrObjectExists
		}
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, io.LimitReader(&contextReader{ctx: ctx, r: content}, s.maxSize+1))
	closeErr := file.Close()
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dataPath)
		if errors.Is(err, ErrFileTooLarge) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	meta, _ := json.Marshal(objectMeta{ContentType: contentType, Size: written, CreatedAt: time.Now().UTC()})
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err == nil {
		// Metadata is best effort; Open falls back to a generic content type.
		os.WriteFile(metaPath, meta, 0644)
	}

	return written, nil
}

// Open retrieves an object by bucket and path
func (s *localStore) Open(ctx context.Context, bucket, objectPath string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dataPath, metaPath, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	obj := &Object{Body: file, ContentType: "application/octet-stream"}
	if info, err := file.Stat(); err == nil {
		obj.Size = info.Size()
	}

	var meta objectMeta
	if raw, err := os.ReadFile(metaPath); err == nil && json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
		obj.ContentType = meta.ContentType
	}

	return obj, nil
}

// Delete removes an object; a missing object is not an error
func (s *localStore) Delete(ctx context.Context, bucket, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataPath, metaPath, err := s.resolve(bucket, objectPath)
	if err != nil {
		return err
	}

	if err := os.Remove(dataPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	os.Remove(metaPath)

	return nil
}

// PublicURL returns {base}/object/public/{bucket}/{path}
func (s *localStore) PublicURL(bucket, objectPath string) string {
	return PublicURL(s.publicBaseURL, bucket, objectPath)
}

// HealthCheck verifies the storage root is writable
func (s *localStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := os.CreateTemp(s.basePath, ".health-*")
	if err != nil {
		return fmt.Errorf("storage not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// PublicURL builds the public object address used by the object route
func PublicURL(baseURL, bucket, objectPath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", strings.TrimRight(baseURL, "/"), bucket, objectPath)
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
