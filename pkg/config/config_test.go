package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfigValidate_AppliesDefaults verifies that Validate fills every
// optional field when only the required ones are set.
func TestConfigValidate_AppliesDefaults(t *testing.T) {
	cfg := &Config{
		RPCAddr:    "https://rpc.example",
		PrivateKey: "0xabc",
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if cfg.UploadMethod != Bundlr {
		t.Fatalf("unexpected UploadMethod: %s", cfg.UploadMethod)
	}
	if cfg.Currency != "ethereum" {
		t.Fatalf("unexpected Currency: %s", cfg.Currency)
	}
	if cfg.Gateway != "https://arweave.net/" {
		t.Fatalf("unexpected Gateway: %s", cfg.Gateway)
	}
	if cfg.ParallelLimit != 45 {
		t.Fatalf("unexpected ParallelLimit: %d", cfg.ParallelLimit)
	}
	if cfg.FeeMultiplier != 1.1 {
		t.Fatalf("unexpected FeeMultiplier: %v", cfg.FeeMultiplier)
	}
	if cfg.Funding.MaxRetries != 120 || cfg.Funding.PollInterval != time.Second {
		t.Fatalf("unexpected funding defaults: %+v", cfg.Funding)
	}
	if cfg.PrivateKey != "abc" {
		t.Fatalf("expected 0x prefix to be stripped, got %q", cfg.PrivateKey)
	}
}

// TestConfigValidate_Errors verifies rejected configurations.
func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "bundlr requires rpc",
			cfg:     Config{PrivateKey: "abc"},
			wantErr: "RPC address is required",
		},
		{
			name:    "bundlr requires key",
			cfg:     Config{RPCAddr: "http://localhost:8545"},
			wantErr: "private key is required",
		},
		{
			name:    "multiplier below one",
			cfg:     Config{RPCAddr: "http://localhost:8545", PrivateKey: "abc", FeeMultiplier: 0.5},
			wantErr: "fee multiplier",
		},
		{
			name:    "unknown method",
			cfg:     Config{UploadMethod: "aws"},
			wantErr: "currently unsupported",
		},
		{
			name:    "negative parallel limit",
			cfg:     Config{UploadMethod: IPFS, ParallelLimit: -1},
			wantErr: "parallel limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestConfigValidate_IPFSNeedsNoChain verifies that the ipfs method runs
// without an RPC endpoint or key.
func TestConfigValidate_IPFSNeedsNoChain(t *testing.T) {
	cfg := &Config{UploadMethod: IPFS}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IpfsURL != "http://127.0.0.1:5001" || cfg.IpfsGateway != "https://ipfs.io/ipfs/" {
		t.Fatalf("unexpected ipfs defaults: %s %s", cfg.IpfsURL, cfg.IpfsGateway)
	}
}

// TestTimeoutsWithDefaults verifies that WithDefaults preserves explicitly set
// timeout values and fills in defaults for zero values.
func TestTimeoutsWithDefaults(t *testing.T) {
	in := Timeouts{
		HTTP:        time.Second,
		ChainSubmit: 42 * time.Second,
	}

	out := in.WithDefaults()

	if out.HTTP != time.Second {
		t.Fatalf("HTTP overwritten: got %v", out.HTTP)
	}
	if out.ChainSubmit != 42*time.Second {
		t.Fatalf("ChainSubmit overwritten: got %v", out.ChainSubmit)
	}
	if out.ChainRead != 12*time.Second {
		t.Fatalf("ChainRead default mismatch: %v", out.ChainRead)
	}
	if out.ReceiptWait != 90*time.Second {
		t.Fatalf("ReceiptWait default mismatch: %v", out.ReceiptWait)
	}
}

func TestLoad_YAMLWithEnvKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `rpc_addr: http://localhost:8545
parallel_limit: 4
fee_multiplier: 1.25
funding:
  max_retries: 3
  poll_interval: 10ms
timeouts:
  http: 5s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(PrivateKeyEnv, "0xdeadbeef")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.PrivateKey != "deadbeef" {
		t.Fatalf("expected key from environment, got %q", cfg.PrivateKey)
	}
	if cfg.ParallelLimit != 4 || cfg.FeeMultiplier != 1.25 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.Funding.MaxRetries != 3 || cfg.Funding.PollInterval != 10*time.Millisecond {
		t.Fatalf("unexpected funding: %+v", cfg.Funding)
	}
	if cfg.Timeouts.HTTP != 5*time.Second {
		t.Fatalf("unexpected HTTP timeout: %v", cfg.Timeouts.HTTP)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
