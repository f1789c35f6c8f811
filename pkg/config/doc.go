// Package config provides configuration management for the uploader.
//
// # Basic Configuration
//
// The bundlr method needs a chain RPC endpoint and a signing key:
//
//	cfg := &config.Config{
//		RPCAddr:    "https://sepolia.infura.io/v3/YOUR_PROJECT_ID",
//		PrivateKey: "YOUR_PRIVATE_KEY",
//	}
//
// The ipfs method needs neither; it only talks to a Kubo node:
//
//	cfg := &config.Config{
//		UploadMethod: config.IPFS,
//		IpfsURL:      "http://127.0.0.1:5001",
//	}
//
// # Config Files
//
// Load reads YAML (JSON is accepted as well) and validates the result:
//
//	rpc_addr: https://sepolia.infura.io/v3/YOUR_PROJECT_ID
//	upload_method: bundlr
//	parallel_limit: 45
//	fee_multiplier: 1.1
//	funding:
//	  max_retries: 120
//	  poll_interval: 1s
//
// When the file carries no private_key, the SUGAR_PRIVATE_KEY environment
// variable is used instead.
//
// # Funding
//
// Before uploading to Bundlr the uploader compares the quoted price (times
// FeeMultiplier) with its node balance and tops the balance up with a single
// transfer. The node credits deposits with a delay, so the balance is polled
// Funding.MaxRetries times, Funding.PollInterval apart.
//
// # Timeouts
//
//	cfg.Timeouts = config.Timeouts{
//		HTTP:        60 * time.Second, // one node request
//		ChainRead:   12 * time.Second, // chain id, nonce, gas price
//		ChainSubmit: 25 * time.Second, // send transaction
//		ReceiptWait: 90 * time.Second, // transaction confirmation
//	}
//
// Zero values are replaced with defaults via WithDefaults().
package config
