// Package sdk provides the high-level entry point for uploading NFT assets to
// decentralized storage.
//
// The SDK ties together asset discovery, the upload cache, cost estimation,
// funding of the storage node balance and the bounded-concurrency upload of
// images, animations and metadata.
//
// # Quick Start
//
//	import (
//		"github.com/shamank/sugar-go/pkg/config"
//		"github.com/shamank/sugar-go/pkg/sdk"
//		"github.com/shamank/sugar-go/pkg/upload"
//	)
//
//	func main() {
//		cfg := &config.Config{
//			RPCAddr:    "https://sepolia.infura.io/v3/YOUR_PROJECT_ID",
//			PrivateKey: "YOUR_PRIVATE_KEY",
//		}
//
//		core, err := sdk.New(ctx, cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer core.Close()
//
//		interrupt := &upload.Interrupt{}
//		report, err := core.Upload(ctx, "./assets", "./cache.json", interrupt)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(report.Status, report.Uploaded())
//	}
//
// # Upload Order
//
// Upload runs in stages: images first, then animations, then metadata. Each
// metadata document is rewritten with the links of its media before it is
// sent, so metadata is skipped entirely when a media upload failed. Links are
// written to the cache as they arrive; a later Upload with the same cache
// resumes where the previous one stopped.
//
// # Backends
//
// With the bundlr method (the default) the node is chosen from the chain the
// RPC endpoint serves, unless BundlrNode is configured. Before the first
// upload the total cost is estimated and, when the node balance does not
// cover it, the difference is transferred to the node and the balance polled
// until it is credited.
//
// With the ipfs method files are added to a Kubo node and no funding is
// needed.
//
// # Logging
//
// The package installs a console zap logger as the global logger. Call
// SetDebug, or set Config.Debug, to enable debug output, or replace the
// logger with zap.ReplaceGlobals.
package sdk
