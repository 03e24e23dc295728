package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobFetcher downloads azblob://container/blob paths from one storage account.
type AzureBlobFetcher struct {
	client *azblob.Client
}

func NewAzureBlobFetcher(account, key string) (*AzureBlobFetcher, error) {
	if account == "" || key == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT/AZURE_STORAGE_KEY required for azblob source")
	}
	credential, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("build shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &AzureBlobFetcher{client: client}, nil
}

func (a *AzureBlobFetcher) Name() string      { return "azblob" }
func (a *AzureBlobFetcher) Schemes() []string { return []string{"azblob"} }

func (a *AzureBlobFetcher) Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error {
	container := src.Host
	blobName := strings.TrimPrefix(src.Path, "/")
	if container == "" || blobName == "" {
		return fmt.Errorf("%w: azblob URL must be azblob://container/blob", ErrIngestionFailed)
	}
	resp, err := a.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return fmt.Errorf("%w: azblob download %s/%s: %v", ErrIngestionFailed, container, blobName, err)
	}
	defer resp.Body.Close()

	var total int64
	if resp.ContentLength != nil {
		total = *resp.ContentLength
	}
	_, err = copyToFile(ctx, dst, resp.Body, total, sink)
	return err
}
