package store

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// ContainerInfo is a container name plus its public access level, which is
// empty for private containers.
type ContainerInfo struct {
	Name         string
	PublicAccess string
}

// Service is the minimal surface of the remote blob service the store
// needs. The production implementation wraps the Azure SDK client; tests
// substitute an in-memory fake.
type Service interface {
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
	CreateContainer(ctx context.Context, name string) error
	ListBlobs(ctx context.Context, container string) ([]string, error)
	Upload(ctx context.Context, container, blobPath string, body io.Reader) error
	Download(ctx context.Context, container, blobPath string, dst io.Writer) (int64, error)
	DeleteBlob(ctx context.Context, container, blobPath string) error
}

type azureService struct {
	client *azblob.Client
}

var _ Service = (*azureService)(nil)

func newAzureService(creds Credentials) (*azureService, error) {
	cred, err := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.%s/", creds.AccountName, serviceDomain),
		cred,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob service client: %w", err)
	}

	return &azureService{client: client}, nil
}

func (s *azureService) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	var containers []ContainerInfo

	pager := s.client.NewListContainersPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list containers: %w", err)
		}

		for _, item := range page.ContainerItems {
			info := ContainerInfo{}
			if item.Name != nil {
				info.Name = *item.Name
			}
			if item.Properties != nil && item.Properties.PublicAccess != nil {
				info.PublicAccess = string(*item.Properties.PublicAccess)
			}
			containers = append(containers, info)
		}
	}

	return containers, nil
}

func (s *azureService) CreateContainer(ctx context.Context, name string) error {
	_, err := s.client.CreateContainer(ctx, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %s: %w", name, err)
	}
	return nil
}

func (s *azureService) ListBlobs(ctx context.Context, container string) ([]string, error) {
	var names []string

	pager := s.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs in %s: %w", container, err)
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	return names, nil
}

func (s *azureService) Upload(ctx context.Context, container, blobPath string, body io.Reader) error {
	_, err := s.client.UploadStream(ctx, container, blobPath, body, &azblob.UploadStreamOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", blobPath, err)
	}
	return nil
}

func (s *azureService) Download(ctx context.Context, container, blobPath string, dst io.Writer) (int64, error) {
	resp, err := s.client.DownloadStream(ctx, container, blobPath, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to download blob %s: %w", blobPath, err)
	}
	defer resp.Body.Close()

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to stream blob %s: %w", blobPath, err)
	}

	return written, nil
}

func (s *azureService) DeleteBlob(ctx context.Context, container, blobPath string) error {
	_, err := s.client.DeleteBlob(ctx, container, blobPath, nil)
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", blobPath, err)
	}
	return nil
}
