package objectstore

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/canfiles/canfiles/internal/config"
)

// AzureBucket implements Bucket on an Azure Blob Storage container.
type AzureBucket struct {
	client    *azblob.Client
	container string
}

// NewAzureBucket creates a client for cfg.ServiceURL, which carries its SAS
// token in the query string, and binds it to cfg.Container.
func NewAzureBucket(cfg config.AzureConfig, httpClient *nethttp.Client) (*AzureBucket, error) {
	opts := &azblob.ClientOptions{}
	if httpClient != nil {
		opts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}
	client, err := azblob.NewClientWithNoCredential(cfg.ServiceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &AzureBucket{client: client, container: cfg.Container}, nil
}

func (b *AzureBucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pager := b.client.NewListBlobsFlatPager(b.container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", b.container, prefix, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (b *AzureBucket) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", b.container, key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *AzureBucket) Create(ctx context.Context, key string, data []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.container, key, data, &azblob.UploadBufferOptions{
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return ErrObjectExists
		}
		return fmt.Errorf("create %s/%s: %w", b.container, key, err)
	}
	return nil
}

func (b *AzureBucket) Put(ctx context.Context, key string, data []byte) error {
	if _, err := b.client.UploadBuffer(ctx, b.container, key, data, nil); err != nil {
		return fmt.Errorf("put %s/%s: %w", b.container, key, err)
	}
	return nil
}
