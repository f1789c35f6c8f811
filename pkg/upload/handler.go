package upload

import (
	"context"
	"math/big"
	"time"

	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler uploads the files of one storage backend.
type Handler interface {
	// Prepare runs once before any upload, with everything the run will send.
	Prepare(ctx context.Context, pairs map[int]model.AssetPair, sel Selection) error
	// UploadData uploads the files of kind for indices and records their links.
	UploadData(ctx context.Context, pairs map[int]model.AssetPair, c *cache.Cache, indices []int, kind model.DataKind, interrupt *Interrupt) (*Result, error)
}

// BundlrNode is everything the Bundlr handler needs from a node client.
type BundlrNode interface {
	Node
	PriceOracle
	Uploader
}

// BundlrHandler funds the node balance for the whole run, then uploads
// through the node.
type BundlrHandler struct {
	Node          BundlrNode
	Funder        Funder
	Gateway       string
	ParallelLimit int
	FeeMultiplier decimal.Decimal
	MaxRetries    int
	PollInterval  time.Duration
	AppName       string
	Progress      func(kind model.DataKind, done, total int)
}

// Prepare estimates the cost of the selection and tops up the node balance
// when it does not cover it. Price and balance are queried concurrently; any
// failure aborts before an upload starts.
func (h *BundlrHandler) Prepare(ctx context.Context, pairs map[int]model.AssetPair, sel Selection) error {
	if sel.Empty() {
		return nil
	}

	var (
		size     uint64
		required *big.Int
		balance  *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		est := &Estimator{Oracle: h.Node, Multiplier: h.FeeMultiplier}
		var err error
		size, required, err = est.Estimate(gctx, pairs, sel)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = h.Node.Balance(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("Funding check",
		zap.Uint64("totalSize", size),
		zap.String("required", required.String()),
		zap.String("balance", balance.String()))

	gate := &FundingGate{
		Node:         h.Node,
		Funder:       h.Funder,
		MaxRetries:   h.MaxRetries,
		PollInterval: h.PollInterval,
	}
	_, err := gate.Ensure(ctx, required, balance)
	return err
}

// UploadData uploads the selected files through the node.
func (h *BundlrHandler) UploadData(ctx context.Context, pairs map[int]model.AssetPair, c *cache.Cache, indices []int, kind model.DataKind, interrupt *Interrupt) (*Result, error) {
	return runTasks(ctx, pairs, c, indices, kind, h.AppName, &Scheduler{
		Uploader:  h.Node,
		Gateway:   h.Gateway,
		Limit:     h.ParallelLimit,
		Cache:     c,
		Interrupt: interrupt,
		Progress:  kindProgress(kind, h.Progress),
	})
}

// IPFSHandler uploads to an IPFS node. Pinning is free, so Prepare does
// nothing.
type IPFSHandler struct {
	Uploader      Uploader
	Gateway       string
	ParallelLimit int
	AppName       string
	Progress      func(kind model.DataKind, done, total int)
}

func (h *IPFSHandler) Prepare(context.Context, map[int]model.AssetPair, Selection) error {
	return nil
}

func (h *IPFSHandler) UploadData(ctx context.Context, pairs map[int]model.AssetPair, c *cache.Cache, indices []int, kind model.DataKind, interrupt *Interrupt) (*Result, error) {
	return runTasks(ctx, pairs, c, indices, kind, h.AppName, &Scheduler{
		Uploader:  h.Uploader,
		Gateway:   h.Gateway,
		Limit:     h.ParallelLimit,
		Cache:     c,
		Interrupt: interrupt,
		Progress:  kindProgress(kind, h.Progress),
	})
}

func runTasks(ctx context.Context, pairs map[int]model.AssetPair, c *cache.Cache, indices []int, kind model.DataKind, appName string, s *Scheduler) (*Result, error) {
	tasks, err := BuildTasks(pairs, c, indices, kind, appName)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &Result{Kind: kind, Status: Successful}, nil
	}
	return s.Run(ctx, kind, tasks)
}

func kindProgress(kind model.DataKind, fn func(model.DataKind, int, int)) func(int, int) {
	if fn == nil {
		return nil
	}
	return func(done, total int) { fn(kind, done, total) }
}
