// Package storage persists finished archives to a blob store chosen by configuration.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/JakeFAU/sitecopier/internal/config"
	"github.com/JakeFAU/sitecopier/internal/storage/gcs"
	"github.com/JakeFAU/sitecopier/internal/storage/local"
	"github.com/JakeFAU/sitecopier/internal/storage/memory"
)

// ZipContentType is recorded for every archive object.
const ZipContentType = "application/zip"

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Open builds the BlobStore selected by cfg. It returns a nil store for the none provider. The
// returned close function releases any client the store holds and is never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "", config.StorageNone:
		return nil, noop, nil
	case config.StorageMemory:
		return memory.NewBlobStore(), noop, nil
	case config.StorageLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, noop, fmt.Errorf("open local store: %w", err)
		}
		return store, noop, nil
	case config.StorageGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("open gcs store: %w", err)
		}
		return store, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// ArchiveKey names an archive object: <prefix>/<host>/<yyyy>/<mm>/<dd>/<id>-<name>.
func ArchiveKey(prefix, host, name string, id uuid.UUID, now time.Time) string {
	if host == "" {
		host = "unknown"
	}
	return path.Join(
		strings.Trim(prefix, "/"),
		host,
		now.UTC().Format("2006/01/02"),
		id.String()+"-"+name,
	)
}
