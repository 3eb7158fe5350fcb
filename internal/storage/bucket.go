package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig describes an S3 compatible bucket used as the storage root.
type BucketConfig struct {
	Endpoint  string // "host:port" or "http(s)://host:port"
	AccessKey string
	SecretKey string
	Bucket    string
}

// Bucket stores files as top-level objects of one MinIO/S3 bucket.
type Bucket struct {
	client *minio.Client
	bucket string
}

var (
	_ Store   = (*Bucket)(nil)
	_ Sweeper = (*Bucket)(nil)
)

// multipart part size for uploads of unknown length; bounds memory per upload.
const bucketPartSize = 16 << 20

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
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
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	return raw, false, nil
}

// NewBucket connects to the bucket described by cfg. The bucket must exist.
func NewBucket(ctx context.Context, cfg BucketConfig) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
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

	b := &Bucket{client: client, bucket: cfg.Bucket}
	if err := b.Check(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bucket) List(ctx context.Context) ([]File, error) {
	files := make([]File, 0)
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: false}) {
		if obj.Err != nil {
			return nil, &IOError{Op: "list", Err: obj.Err}
		}
		// Common prefixes show up as keys ending in "/"; the namespace is flat.
		if strings.Contains(obj.Key, "/") || strings.HasPrefix(obj.Key, ".") {
			continue
		}
		files = append(files, File{Name: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (b *Bucket) Save(ctx context.Context, name string, r io.Reader) (File, error) {
	key, err := Sanitize(name)
	if err != nil {
		return File{}, err
	}

	info, err := b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    bucketPartSize,
	})
	if err != nil {
		return File{}, &IOError{Op: "save", Name: key, Err: err}
	}
	return File{Name: key, Size: info.Size, ModTime: info.LastModified}, nil
}

func (b *Bucket) Open(ctx context.Context, name string) (Object, error) {
	key, err := Sanitize(name)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.classify("open", key, err)
	}
	// GetObject is lazy; Stat forces the request so missing keys surface here.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, b.classify("open", key, err)
	}
	return &bucketObject{Object: obj, info: File{Name: key, Size: st.Size, ModTime: st.LastModified}}, nil
}

func (b *Bucket) Delete(ctx context.Context, name string) error {
	key, err := Sanitize(name)
	if err != nil {
		return err
	}

	// RemoveObject succeeds for missing keys, so probe first.
	if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		return b.classify("delete", key, err)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return b.classify("delete", key, err)
	}
	return nil
}

func (b *Bucket) Check(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return &IOError{Op: "check", Err: err}
	}
	if !exists {
		return &IOError{Op: "check", Err: fmt.Errorf("bucket does not exist: %s", b.bucket)}
	}
	return nil
}

// SweepStale aborts multipart uploads initiated before cutoff, releasing the
// parts a dropped connection left on the server.
func (b *Bucket) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale := map[string]bool{}
	for info := range b.client.ListIncompleteUploads(ctx, b.bucket, "", true) {
		if info.Err != nil {
			return 0, b.classify("sweep", "", info.Err)
		}
		if info.Initiated.Before(cutoff) {
			stale[info.Key] = true
		}
	}

	removed := 0
	for key := range stale {
		if err := b.client.RemoveIncompleteUpload(ctx, b.bucket, key); err != nil {
			return removed, b.classify("sweep", key, err)
		}
		removed++
	}
	return removed, nil
}

func (b *Bucket) classify(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &IOError{Op: op, Name: key, Err: err}
}

type bucketObject struct {
	*minio.Object
	info File
}

func (o *bucketObject) Info() File { return o.info }
