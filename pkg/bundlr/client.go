package bundlr

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shamank/sugar-go/pkg/blockchain"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Node endpoints per deployment.
const (
	MainnetNode = "https://node1.bundlr.network"
	DevnetNode  = "https://devnet.bundlr.network"
)

// NodeFor returns the Bundlr node serving the given cluster.
func NodeFor(cluster blockchain.Cluster) string {
	if cluster == blockchain.Mainnet {
		return MainnetNode
	}
	return DevnetNode
}

// maxErrorBody bounds how much of an error response is quoted in errors.
const maxErrorBody = 512

// StatusError is returned when the node answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Client talks to one Bundlr node on behalf of one key. It is safe for
// concurrent use: uploads share the HTTP client and only read the key.
type Client struct {
	node     string
	currency string
	key      *ecdsa.PrivateKey
	address  string
	http     *http.Client
}

// NewClient returns a client for node paying in currency. key signs data items
// and its address identifies the uploader's balance.
func NewClient(node, currency string, key *ecdsa.PrivateKey, timeout time.Duration) (*Client, error) {
	if key == nil {
		return nil, errors.New("private key is required for bundlr uploads")
	}
	addr := blockchain.GetAddressFromPrivateKeyECDSA(key)
	if addr == nil {
		return nil, errors.New("failed to derive address from private key")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		node:     strings.TrimSuffix(node, "/"),
		currency: currency,
		key:      key,
		address:  strings.ToLower(addr.Hex()),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Node returns the node base URL.
func (c *Client) Node() string {
	return c.node
}

// Address returns the uploader address whose balance is charged.
func (c *Client) Address() string {
	return c.address
}

type infoResponse struct {
	Version   string            `json:"version"`
	Addresses map[string]string `json:"addresses"`
	Gateway   string            `json:"gateway"`
}

// DepositAddress reads /info and returns the node's deposit address for the
// configured currency.
func (c *Client) DepositAddress(ctx context.Context) (string, error) {
	var info infoResponse
	if err := c.getJSON(ctx, c.node+"/info", &info); err != nil {
		return "", err
	}
	addr, ok := info.Addresses[c.currency]
	if !ok || addr == "" {
		return "", fmt.Errorf("node %s has no deposit address for %s", c.node, c.currency)
	}
	return addr, nil
}

// Balance returns the uploader's balance held by the node, in the currency's
// base unit.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/account/balance/%s/?address=%s", c.node, c.currency, url.QueryEscape(c.address))
	var resp struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	amount, err := parseAmount(strings.Trim(string(resp.Balance), `"`))
	if err != nil {
		return nil, err
	}
	return amount.Floor().BigInt(), nil
}

// Price returns the cost of storing size bytes.
func (c *Client) Price(ctx context.Context, size uint64) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/price/%s/%d", c.node, c.currency, size)
	body, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(string(body))
	if err != nil {
		return nil, err
	}
	return amount.Ceil().BigInt(), nil
}

// NotifyDeposit links a confirmed transfer to the uploader's balance.
func (c *Client) NotifyDeposit(ctx context.Context, txID string) error {
	payload, err := json.Marshal(map[string]string{"tx_id": txID})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/account/balance/%s", c.node, c.currency)
	if _, err := c.do(ctx, http.MethodPost, endpoint, "application/json", payload); err != nil {
		return err
	}
	zap.L().Debug("Deposit notified", zap.String("txId", txID), zap.String("node", c.node))
	return nil
}

// Upload signs data with tags as a data item, submits it and returns the id
// assigned by the node.
func (c *Client) Upload(ctx context.Context, data []byte, tags []model.Tag) (string, error) {
	item, err := NewDataItem(data, tags)
	if err != nil {
		return "", err
	}
	if err := item.Sign(c.key); err != nil {
		return "", err
	}
	raw, err := item.Bytes()
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/tx/%s", c.node, c.currency)
	body, err := c.do(ctx, http.MethodPost, endpoint, "application/octet-stream", raw)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("upload response has no id")
	}
	if resp.ID != item.ID() {
		zap.L().Debug("Node assigned a different id", zap.String("local", item.ID()), zap.String("node", resp.ID))
	}
	return resp.ID, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("failed to close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: endpoint, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// parseAmount accepts integer or decimal strings such as "1234" or "1234.0".
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q", s)
	}
	return amount, nil
}
