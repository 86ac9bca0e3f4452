package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is an Engine backed by an S3-compatible object store.
// PutObject is atomic on the server side, so no temporary-name dance
// is needed: an object is visible only once fully written.
type ObjectStore struct {
	client *minio.Client
	bucket string
	policy Policy
}

// ObjectStoreConfig carries the connection settings for the object
// store backend.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// normalizeEndpoint accepts either "minio:9000" or
// "http://minio:9000" / "https://minio:9000".
func normalizeEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}
	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewObjectStore connects to the object store and verifies the bucket
// exists before accepting any traffic.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig, policy Policy) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store configuration incomplete")
	}
	endpoint, secure, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", cfg.Bucket)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, policy: policy}, nil
}

// cappedReader passes through at most max bytes and records when the
// source tried to exceed them.
type cappedReader struct {
	r        io.Reader
	left     int64
	exceeded bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		c.exceeded = true
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

func (o *ObjectStore) Write(ctx context.Context, name string, r io.Reader, declaredSize int64) (StoredFile, error) {
	if err := o.policy.CheckExtension(name); err != nil {
		return StoredFile{}, err
	}
	if declaredSize >= 0 {
		if err := o.policy.CheckSize(declaredSize); err != nil {
			return StoredFile{}, err
		}
	}
	if _, err := rootedPath("/", name); err != nil {
		return StoredFile{}, err
	}

	src := r
	var cr *cappedReader
	if o.policy.MaxSize > 0 {
		cr = &cappedReader{r: r, left: o.policy.MaxSize + 1}
		src = cr
	}

	info, err := o.client.PutObject(ctx, o.bucket, name, src, -1, minio.PutObjectOptions{})
	if err != nil || (cr != nil && cr.exceeded) {
		// Remove whatever partial object the failed put may have left.
		_ = o.client.RemoveObject(context.WithoutCancel(ctx), o.bucket, name, minio.RemoveObjectOptions{})
		if cr != nil && cr.exceeded {
			return StoredFile{}, ErrTooLarge
		}
		return StoredFile{}, fmt.Errorf("put object: %w", err)
	}
	if err := o.policy.CheckSize(info.Size); err != nil {
		_ = o.client.RemoveObject(context.WithoutCancel(ctx), o.bucket, name, minio.RemoveObjectOptions{})
		return StoredFile{}, err
	}

	stat, err := o.client.StatObject(ctx, o.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return StoredFile{}, fmt.Errorf("stat object: %w", err)
	}
	return StoredFile{Name: name, Size: stat.Size, CreatedAt: stat.LastModified}, nil
}

func (o *ObjectStore) Read(ctx context.Context, name string) (io.ReadCloser, StoredFile, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, StoredFile{}, fmt.Errorf("get object: %w", err)
	}
	// Force an early error for a missing object.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, StoredFile{}, ErrNotFound
		}
		return nil, StoredFile{}, fmt.Errorf("stat object: %w", err)
	}
	return obj, StoredFile{Name: name, Size: stat.Size, CreatedAt: stat.LastModified}, nil
}

func (o *ObjectStore) List(ctx context.Context) ([]StoredFile, error) {
	var files []StoredFile
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") || strings.HasPrefix(obj.Key, ".") {
			continue
		}
		files = append(files, StoredFile{
			Name:      obj.Key,
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

func (o *ObjectStore) Delete(ctx context.Context, name string) error {
	if _, err := o.client.StatObject(ctx, o.bucket, name, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrNotFound
		}
		return fmt.Errorf("stat object: %w", err)
	}
	if err := o.client.RemoveObject(ctx, o.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
