package sdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shamank/sugar-go/pkg/assets"
	"github.com/shamank/sugar-go/pkg/blockchain"
	"github.com/shamank/sugar-go/pkg/bundlr"
	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/config"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shamank/sugar-go/pkg/storage"
	"github.com/shamank/sugar-go/pkg/upload"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Version is reported in the App-Name tag of every upload.
const Version = "0.1.0"

// AppName is the App-Name tag value.
var AppName = "Sugar " + Version

// Sugar is the public interface of the upload SDK.
type Sugar interface {
	// Upload sends every asset in assetsDir that has no link in the cache at
	// cachePath yet, and records the new links there.
	Upload(ctx context.Context, assetsDir, cachePath string, interrupt *upload.Interrupt) (*Report, error)

	// Balance returns the uploader's balance held by the storage node.
	Balance(ctx context.Context) (*big.Int, error)

	// Close releases resources associated with the SDK instance.
	Close()
}

var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// SetDebug switches the default logger between Info and Debug level.
func SetDebug(debug bool) {
	if debug {
		logLevel.SetLevel(zap.DebugLevel)
	} else {
		logLevel.SetLevel(zap.InfoLevel)
	}
}

// Core is the concrete SDK implementation.
type Core struct {
	*config.Config
	evm     *blockchain.EVMClient
	node    *bundlr.Client
	handler upload.Handler

	// Progress, if set, receives live counts while files upload.
	Progress func(kind model.DataKind, done, total int)
}

// New validates cfg and wires the upload backend it selects. For Bundlr the
// node is taken from the configuration or, when unset, chosen from the
// cluster of the connected chain; failing to read the chain is fatal.
func New(ctx context.Context, cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		zap.L().Error("Invalid config", zap.Error(err))
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()
	SetDebug(cfg.Debug)

	core := &Core{Config: cfg}
	switch cfg.UploadMethod {
	case config.IPFS:
		client, err := storage.NewIPFSClient(cfg.IpfsURL, cfg.IpfsGateway, cfg.Timeouts.HTTP)
		if err != nil {
			return nil, err
		}
		core.handler = &upload.IPFSHandler{
			Uploader:      client,
			Gateway:       client.Gateway(),
			ParallelLimit: cfg.ParallelLimit,
			AppName:       AppName,
			Progress:      core.progress,
		}
	default:
		if err := core.initBundlr(ctx); err != nil {
			core.Close()
			return nil, err
		}
	}
	return core, nil
}

func (c *Core) initBundlr(ctx context.Context) error {
	evm, err := blockchain.InitEvm(c.RPCAddr, c.PrivateKey, c.Timeouts)
	if err != nil {
		zap.L().Error("Init ethereum client failed", zap.Error(err))
		return err
	}
	c.evm = evm

	nodeURL := c.BundlrNode
	if nodeURL == "" {
		cluster, err := evm.Cluster(ctx)
		if err != nil {
			return fmt.Errorf("select storage node: %w", err)
		}
		nodeURL = bundlr.NodeFor(cluster)
		zap.L().Debug("Storage node selected", zap.Stringer("cluster", cluster), zap.String("node", nodeURL))
	}

	node, err := bundlr.NewClient(nodeURL, c.Currency, evm.PrivateKey(), c.Timeouts.HTTP)
	if err != nil {
		return err
	}
	c.node = node
	c.handler = &upload.BundlrHandler{
		Node:          node,
		Funder:        evm,
		Gateway:       c.Gateway,
		ParallelLimit: c.ParallelLimit,
		FeeMultiplier: decimal.NewFromFloat(c.FeeMultiplier),
		MaxRetries:    c.Funding.MaxRetries,
		PollInterval:  c.Funding.PollInterval,
		AppName:       AppName,
		Progress:      c.progress,
	}
	return nil
}

// NodeURL returns the Bundlr node in use, or "" for IPFS uploads.
func (c *Core) NodeURL() string {
	if c.node == nil {
		return ""
	}
	return c.node.Node()
}

// Balance returns the uploader's balance on the Bundlr node.
func (c *Core) Balance(ctx context.Context) (*big.Int, error) {
	if c.node == nil {
		return nil, errors.New("balance is only available for bundlr uploads")
	}
	return c.node.Balance(ctx)
}

// WalletBalance returns the funding wallet's on-chain balance, the source of
// any top-up.
func (c *Core) WalletBalance(ctx context.Context) (*big.Int, error) {
	if c.evm == nil {
		return nil, errors.New("wallet balance is only available for bundlr uploads")
	}
	return c.evm.WalletBalance(ctx)
}

// Close shuts down underlying network clients (e.g., Ethereum RPC).
func (c *Core) Close() {
	if c.evm != nil {
		c.evm.Close()
	}
}

func (c *Core) progress(kind model.DataKind, done, total int) {
	if c.Progress != nil {
		c.Progress(kind, done, total)
	}
}

// Report summarizes an Upload call.
type Report struct {
	Assets  int
	Status  upload.Status
	Results []*upload.Result
}

// Uploaded returns the number of files uploaded during the call.
func (r *Report) Uploaded() int {
	n := 0
	for _, res := range r.Results {
		n += res.Uploaded
	}
	return n
}

// Failed returns the number of files whose upload failed.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Errors)
	}
	return n
}

// Upload loads the assets and the cache, skips everything already linked,
// prepares the backend once for the remaining files, then uploads images,
// animations and finally metadata, so that each document embeds the links of
// its media. Metadata is not sent if any media upload failed.
func (c *Core) Upload(ctx context.Context, assetsDir, cachePath string, interrupt *upload.Interrupt) (*Report, error) {
	pairs, err := assets.Load(assetsDir)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no assets found in %s", assetsDir)
	}

	store, err := cache.Load(cachePath)
	if err != nil {
		return nil, err
	}
	store.Prime(pairs)
	if err := store.Sync(); err != nil {
		return nil, err
	}

	sel := upload.Selection{
		Images:     upload.PendingIndices(pairs, store, model.Image),
		Animations: upload.PendingIndices(pairs, store, model.Animation),
		Metadata:   upload.PendingIndices(pairs, store, model.Metadata),
	}
	report := &Report{Assets: len(pairs), Status: upload.Successful}
	if sel.Empty() {
		zap.L().Info("All assets already uploaded", zap.Int("assets", len(pairs)))
		return report, nil
	}

	zap.L().Info("Assets to upload",
		zap.Int("images", len(sel.Images)),
		zap.Int("animations", len(sel.Animations)),
		zap.Int("metadata", len(sel.Metadata)))

	if err := c.handler.Prepare(ctx, pairs, sel); err != nil {
		return nil, err
	}

	stages := []struct {
		kind    model.DataKind
		indices []int
	}{
		{model.Image, sel.Images},
		{model.Animation, sel.Animations},
		{model.Metadata, sel.Metadata},
	}
	var errs []error
	for _, stage := range stages {
		if len(stage.indices) == 0 {
			continue
		}
		if stage.kind == model.Metadata && len(errs) > 0 {
			zap.L().Warn("Skipping metadata upload, not all media were uploaded")
			break
		}
		if interrupt.IsSet() {
			report.Status = upload.Aborted
			errs = append(errs, upload.ErrAborted)
			break
		}

		res, err := c.handler.UploadData(ctx, pairs, store, stage.indices, stage.kind, interrupt)
		if res != nil {
			report.Results = append(report.Results, res)
		}
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if res != nil && res.Status == upload.Failed {
			report.Status = upload.Failed
			continue
		}
		// Aborted, or rejected before any upload (mixed extensions).
		report.Status = upload.Failed
		if res != nil {
			report.Status = upload.Aborted
		}
		break
	}
	return report, errors.Join(errs...)
}
