// Package storage keeps blobs in a single Azure Blob Storage container.
// Tally writes reference-catalog snapshots and posted invoice payloads there.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/JaimeStill/tally/pkg/lifecycle"
)

const jsonContentType = "application/json"

// System reads and writes blobs by key. Writes before Start has created the
// container fail; callers check Ready and skip archival instead.
type System interface {
	Start(lc *lifecycle.Coordinator) error
	Ready() bool
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// Download returns ErrNotFound for a missing key. The caller closes the body.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

type azure struct {
	client *container.Client
	logger *slog.Logger
	ready  atomic.Bool
}

// New builds a container client without contacting the service. A
// connection string wins over ServiceURL, which authenticates through the
// default Azure credential chain.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := newContainerClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client: client,
		logger: logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func newContainerClient(cfg *Config) (*container.Client, error) {
	if cfg.ConnectionString != "" {
		return container.NewClientFromConnectionString(cfg.ConnectionString, cfg.ContainerName, nil)
	}

	endpoint, err := url.JoinPath(cfg.ServiceURL, cfg.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("container url: %w", err)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	return container.NewClient(endpoint, cred, nil)
}

// PutJSON marshals v and uploads it to key as application/json.
func PutJSON(ctx context.Context, s System, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Upload(ctx, key, bytes.NewReader(data), jsonContentType)
}

// GetJSON downloads the blob at key and decodes it into T.
func GetJSON[T any](ctx context.Context, s System, key string) (T, error) {
	var result T

	body, err := s.Download(ctx, key)
	if err != nil {
		return result, err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode %s: %w", key, err)
	}
	return result, nil
}

func (a *azure) Ready() bool {
	return a.ready.Load()
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.Track("storage", a)

	lc.OnStartup(func() {
		_, err := a.client.Create(lc.Context(), nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("container create failed", "error", err)
			return
		}
		a.ready.Store(true)
		a.logger.Info("storage container ready")
	})

	return nil
}

func (a *azure) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := a.client.NewBlockBlobClient(key).UploadStream(ctx, r, opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", key, err)
	}
	return nil
}

func (a *azure) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	return resp.Body, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
