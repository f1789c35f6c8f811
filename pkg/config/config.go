// Package config defines the runtime configuration of the uploader, including
// the chain RPC endpoint, the signing key, the storage backend selection,
// upload concurrency, funding policy and operation timeouts. It also provides
// loading, validation and defaulting helpers.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PrivateKeyEnv names the environment variable consulted when the config file
// does not carry a private key.
const PrivateKeyEnv = "SUGAR_PRIVATE_KEY"

// UploadMethod selects the storage backend.
type UploadMethod string

const (
	// Bundlr uploads pay-per-byte to a Bundlr node and links through Arweave.
	Bundlr UploadMethod = "bundlr"
	// IPFS adds files to a Kubo node and links through an IPFS gateway.
	IPFS UploadMethod = "ipfs"
)

// Config holds all settings required to run an upload.
// Use Validate to fill implicit defaults and to check for required fields.
type Config struct {
	// RPCAddr is the chain RPC endpoint used for deployment selection and
	// funding transfers (required for the bundlr method).
	RPCAddr string `json:"rpc_addr" yaml:"rpc_addr"`
	// PrivateKey is the hex-encoded ECDSA key that signs funding transfers and
	// upload data items.
	PrivateKey string `json:"private_key" yaml:"private_key"`
	// UploadMethod selects the storage backend. Default: bundlr.
	UploadMethod UploadMethod `json:"upload_method" yaml:"upload_method"`
	// BundlrNode overrides the node selected from the chain cluster.
	BundlrNode string `json:"bundlr_node" yaml:"bundlr_node"`
	// Currency is the node currency path segment. Default: ethereum.
	Currency string `json:"currency" yaml:"currency"`
	// Gateway prefixes Bundlr transaction ids. Default: https://arweave.net/
	Gateway string `json:"gateway" yaml:"gateway"`
	// IpfsURL is the Kubo HTTP API endpoint. Default: http://127.0.0.1:5001
	IpfsURL string `json:"ipfs_url" yaml:"ipfs_url"`
	// IpfsGateway prefixes IPFS CIDs. Default: https://ipfs.io/ipfs/
	IpfsGateway string `json:"ipfs_gateway" yaml:"ipfs_gateway"`
	// ParallelLimit bounds the number of uploads in flight. Default: 45.
	ParallelLimit int `json:"parallel_limit" yaml:"parallel_limit"`
	// FeeMultiplier is applied to the quoted price to absorb drift. Default: 1.1.
	FeeMultiplier float64 `json:"fee_multiplier" yaml:"fee_multiplier"`
	// Funding controls the balance confirmation poll.
	Funding Funding `json:"funding" yaml:"funding"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Funding bounds the poll that waits for a top-up to be credited.
type Funding struct {
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// Timeouts controls operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	HTTP        time.Duration `json:"http" yaml:"http"`                 // single node request
	ChainRead   time.Duration `json:"chain_read" yaml:"chain_read"`     // chain id, nonce, gas price
	ChainSubmit time.Duration `json:"chain_submit" yaml:"chain_submit"` // send tx
	ReceiptWait time.Duration `json:"receipt_wait" yaml:"receipt_wait"` // wait tx
}

const (
	defaultCurrency      = "ethereum"
	defaultGateway       = "https://arweave.net/"
	defaultIpfsURL       = "http://127.0.0.1:5001"
	defaultIpfsGateway   = "https://ipfs.io/ipfs/"
	defaultParallelLimit = 45
	defaultFeeMultiplier = 1.1
	defaultMaxRetries    = 120
	defaultPollInterval  = time.Second
)

// Load reads a YAML (or JSON) config file, applies the private key environment
// override and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.PrivateKey == "" {
		c.PrivateKey = os.Getenv(PrivateKeyEnv)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate normalizes the configuration by applying implicit defaults and
// verifies that the fields required by the selected upload method are set.
func (c *Config) Validate() error {
	if c.UploadMethod == "" {
		c.UploadMethod = Bundlr
	}
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}
	if c.Gateway == "" {
		c.Gateway = defaultGateway
	}
	if c.IpfsURL == "" {
		c.IpfsURL = defaultIpfsURL
	}
	if c.IpfsGateway == "" {
		c.IpfsGateway = defaultIpfsGateway
	}
	if c.ParallelLimit == 0 {
		c.ParallelLimit = defaultParallelLimit
	}
	if c.FeeMultiplier == 0 {
		c.FeeMultiplier = defaultFeeMultiplier
	}
	if c.Funding.MaxRetries == 0 {
		c.Funding.MaxRetries = defaultMaxRetries
	}
	if c.Funding.PollInterval == 0 {
		c.Funding.PollInterval = defaultPollInterval
	}
	c.PrivateKey = strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x")
	c.Timeouts = c.Timeouts.WithDefaults()

	if c.ParallelLimit < 0 {
		return errors.New("parallel limit must be positive")
	}
	if c.FeeMultiplier < 1.0 {
		return fmt.Errorf("fee multiplier must be at least 1.0, got %v", c.FeeMultiplier)
	}
	if c.Funding.MaxRetries < 0 {
		return errors.New("funding retries must not be negative")
	}

	switch c.UploadMethod {
	case Bundlr:
		if c.RPCAddr == "" {
			return errors.New("RPC address is required")
		}
		if c.PrivateKey == "" {
			return errors.New("private key is required for bundlr uploads")
		}
	case IPFS:
	default:
		return fmt.Errorf("upload method '%s' currently unsupported", c.UploadMethod)
	}
	return nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	HTTP:        60s
//	ChainRead:   12s
//	ChainSubmit: 25s
//	ReceiptWait: 90s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.HTTP == 0 {
		tt.HTTP = 60 * time.Second
	}
	if tt.ChainRead == 0 {
		tt.ChainRead = 12 * time.Second
	}
	if tt.ChainSubmit == 0 {
		tt.ChainSubmit = 25 * time.Second
	}
	if tt.ReceiptWait == 0 {
		tt.ReceiptWait = 90 * time.Second
	}
	return tt
}
