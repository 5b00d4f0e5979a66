// Package publish uploads rendered search files to an S3-compatible object
// store so a static documentation site can serve them.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// ManifestName is written last, after every search file is in place.
const ManifestName = "manifest.json"

// ObjectAPI is the subset of *minio.Client the publisher uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Manifest struct {
	Docset      string        `json:"docset"`
	Version     string        `json:"version"`
	Files       []string      `json:"files"`
	Stats       catalog.Stats `json:"stats"`
	PublishedAt time.Time     `json:"publishedAt"`
}

type Publisher struct {
	client ObjectAPI
	bucket string
	prefix string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewMinio connects to the configured endpoint.
func NewMinio(cfg config.ObjectStoreConfig) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

func New(client ObjectAPI, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		logger: slog.Default().With("component", "publisher"),
	}
}

// WithRetry replaces the upload retry policy.
func (p *Publisher) WithRetry(cfg resilience.RetryConfig) *Publisher {
	p.retry = cfg
	return p
}

// Key returns the object key of a search file.
func (p *Publisher) Key(docset, version, name string) string {
	return path.Join(p.prefix, docset, version, "search", name)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	ok, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", p.bucket, err)
	}
	if ok {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("creating bucket %s: %w", p.bucket, err)
	}
	return nil
}

// Publish renders every file of cat and uploads it under
// <prefix>/<docset>/<version>/search/.
func (p *Publisher) Publish(ctx context.Context, docset, version string, cat *catalog.Catalog) (Manifest, error) {
	names := make([]string, 0, len(cat.AllFiles())+1)
	for _, f := range cat.AllFiles() {
		names = append(names, f.Name)
	}
	if len(cat.SectionSet().Sections) > 0 {
		names = append(names, catalog.SectionsFile)
	}

	var buf bytes.Buffer
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		buf.Reset()
		if err := cat.RenderFile(&buf, name); err != nil {
			return Manifest{}, fmt.Errorf("rendering %s: %w", name, err)
		}
		if err := p.put(ctx, p.Key(docset, version, name), buf.Bytes(), "application/javascript"); err != nil {
			return Manifest{}, err
		}
	}

	m := Manifest{
		Docset:      docset,
		Version:     version,
		Files:       names,
		Stats:       cat.Stats(),
		PublishedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := p.put(ctx, path.Join(p.prefix, docset, version, ManifestName), data, "application/json"); err != nil {
		return Manifest{}, err
	}

	p.logger.Info("docset published",
		"docset", docset,
		"version", version,
		"bucket", p.bucket,
		"files", len(names),
	)
	return m, nil
}

func (p *Publisher) put(ctx context.Context, key string, data []byte, contentType string) error {
	return resilience.Retry(ctx, "put "+key, p.retry, func() error {
		_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err == nil {
			return nil
		}
		switch minio.ToErrorResponse(err).Code {
		case "AccessDenied", "NoSuchBucket", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return resilience.Permanent(err)
		}
		return err
	})
}
