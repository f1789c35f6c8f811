package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/kubo/client/rpc"
	"github.com/shamank/sugar-go/pkg/model"
	"go.uber.org/zap"
)

// IPFSClient uploads asset files to an IPFS node through the Kubo HTTP API.
// It is safe for concurrent use; the underlying HTTP client is shared.
type IPFSClient struct {
	api     *rpc.HttpApi
	gateway string
}

// NewIPFSClient constructs a Kubo HTTP API client pointed at url. Content
// added through it is linked under gateway.
func NewIPFSClient(url, gateway string, timeout time.Duration) (*IPFSClient, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := http.Client{
		Timeout: timeout,
	}
	api, err := rpc.NewURLApiWithClient(url, &httpClient)
	if err != nil {
		zap.L().Error("Connection failed to IPFS", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return &IPFSClient{api: api, gateway: gateway}, nil
}

// Gateway returns the retrieval prefix for uploaded content.
func (c *IPFSClient) Gateway() string {
	return c.gateway
}

// Upload adds data to the node with pinning enabled and returns its CID. IPFS
// stores no per-object tags, so tags are only logged.
func (c *IPFSClient) Upload(ctx context.Context, data []byte, tags []model.Tag) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("ipfs client not configured")
	}

	var addResp struct {
		Name string `json:"Name"`
		Hash string `json:"Hash"`
	}
	err := c.api.Request("add").
		Option("pin", true).
		FileBody(bytes.NewReader(data)).
		Exec(ctx, &addResp)
	if err != nil {
		zap.L().Error("error uploading to ipfs", zap.Error(err))
		return "", fmt.Errorf("ipfs add: %w", err)
	}

	id, err := cid.Decode(addResp.Hash)
	if err != nil {
		zap.L().Error("ipfs returned an invalid CID", zap.String("hash", addResp.Hash), zap.Error(err))
		return "", fmt.Errorf("ipfs add: invalid CID %q: %w", addResp.Hash, err)
	}

	zap.L().Debug("Successfully uploaded to IPFS",
		zap.String("cid", id.String()),
		zap.Int("size", len(data)),
		zap.Any("tags", tags))
	return id.String(), nil
}
