package location

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/zap"
)

// blobBackend is the slice of blob storage BlobStore needs.
type blobBackend interface {
	upload(ctx context.Context, name string, data []byte) error
	download(ctx context.Context, name string) ([]byte, error)
}

// BlobStore keeps each value as a JSON blob in one Azure Storage container.
type BlobStore struct {
	backend blobBackend
	prefix  string
	logger  *zap.Logger
}

var _ Store = (*BlobStore)(nil)

// NewBlobStore connects to the container described by a standard storage
// connection string. Blobs are named prefix/key.json.
func NewBlobStore(connectionString, containerName, prefix string, logger *zap.Logger) (*BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := newAzureContainer(connectionString, containerName, logger)
	if err != nil {
		return nil, err
	}
	return &BlobStore{backend: backend, prefix: strings.Trim(prefix, "/"), logger: logger}, nil
}

func (s *BlobStore) blobName(key string) string {
	name := strings.TrimPrefix(key, "/") + ".json"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := s.backend.download(ctx, s.blobName(key))
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("failed to read location %q: %w", key, err)
	}
	return data, nil
}

func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	name := s.blobName(key)
	if err := s.backend.upload(ctx, name, value); err != nil {
		s.logger.Error("Failed to upload location value",
			zap.String("blob_path", name),
			zap.Int("size", len(value)),
			zap.Error(err))
		return fmt.Errorf("failed to write location %q: %w", key, err)
	}
	return nil
}

// azureContainer addresses one container through a shared-key client.
// Plain http endpoints are accepted for local Azurite.
type azureContainer struct {
	container *container.Client
	name      string
	logger    *zap.Logger

	mu     sync.Mutex
	exists bool
}

func newAzureContainer(connectionString, containerName string, logger *zap.Logger) (*azureContainer, error) {
	switch {
	case connectionString == "":
		return nil, fmt.Errorf("connection string is required")
	case containerName == "":
		return nil, fmt.Errorf("container name is required")
	}

	params := parseConnectionString(connectionString)
	account, key := params["AccountName"], params["AccountKey"]
	if account == "" || key == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	endpoint := params["BlobEndpoint"]
	if endpoint == "" {
		endpoint = "https://" + account + ".blob.core.windows.net"
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("invalid storage account key: %w", err)
	}
	opts := &azblob.ClientOptions{}
	opts.InsecureAllowCredentialWithHTTP = strings.HasPrefix(strings.ToLower(endpoint), "http://")

	svc, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &azureContainer{
		container: svc.ServiceClient().NewContainerClient(containerName),
		name:      containerName,
		logger:    logger,
	}, nil
}

func (a *azureContainer) upload(ctx context.Context, name string, data []byte) error {
	if err := a.create(ctx); err != nil {
		return err
	}
	_, err := a.container.NewBlockBlobClient(name).UploadBuffer(ctx, data, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	})
	if err != nil {
		return err
	}
	a.logger.Debug("Stored location blob", zap.String("container", a.name), zap.String("blob_path", name))
	return nil
}

func (a *azureContainer) download(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.container.NewBlobClient(name).DownloadStream(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// create makes the container on first write. A failed attempt is retried on
// the next write.
func (a *azureContainer) create(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exists {
		return nil
	}
	_, err := a.container.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %q: %w", a.name, err)
	}
	a.exists = true
	return nil
}

// parseConnectionString splits "Key=Value;Key=Value". Values may contain '='
// (base64 account keys).
func parseConnectionString(connectionString string) map[string]string {
	params := map[string]string{}
	for _, part := range strings.Split(connectionString, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && key != "" {
			params[key] = value
		}
	}
	return params
}
