package upload

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/shamank/sugar-go/pkg/assets"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// HeaderSize is the per-item overhead of a signed data item.
	HeaderSize = 2000
	// MinimumSize is the smallest size a file is billed for.
	MinimumSize = 10000
	// MockURISize is the length of the placeholder link used when sizing
	// metadata whose real links are not known yet.
	MockURISize = 100
)

// DefaultFeeMultiplier absorbs price drift between estimate and submission.
var DefaultFeeMultiplier = decimal.RequireFromString("1.1")

// PriceOracle quotes the cost of storing a number of bytes.
type PriceOracle interface {
	Price(ctx context.Context, size uint64) (*big.Int, error)
}

// Selection lists, per data kind, the asset indices awaiting upload.
type Selection struct {
	Images     []int
	Animations []int
	Metadata   []int
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.Images) == 0 && len(s.Animations) == 0 && len(s.Metadata) == 0
}

// Estimator computes the storage cost of a selection.
type Estimator struct {
	Oracle     PriceOracle
	Multiplier decimal.Decimal
}

// TotalSize returns the number of bytes billed for the selection. Media files
// count their size on disk; metadata counts its encoding after the image and
// animation links are replaced by a fixed-length placeholder, which bounds
// the size of the document once the real links are known.
func TotalSize(pairs map[int]model.AssetPair, sel Selection) (uint64, error) {
	var total uint64
	billed := func(size int64) uint64 {
		return HeaderSize + uint64(max(MinimumSize, size))
	}

	for _, kind := range []model.DataKind{model.Image, model.Animation} {
		indices := sel.Images
		if kind == model.Animation {
			indices = sel.Animations
		}
		for _, index := range indices {
			pair, ok := pairs[index]
			if !ok {
				return 0, fmt.Errorf("asset %d not found", index)
			}
			info, err := os.Stat(pair.Path(kind))
			if err != nil {
				return 0, fmt.Errorf("stat %s: %w", kind, err)
			}
			total += billed(info.Size())
		}
	}

	mock := strings.Repeat("x", MockURISize)
	for _, index := range sel.Metadata {
		pair, ok := pairs[index]
		if !ok {
			return 0, fmt.Errorf("asset %d not found", index)
		}
		var animation *string
		if pair.HasAnimation() {
			animation = &mock
		}
		doc, err := assets.UpdatedMetadata(pair.Metadata, mock, animation)
		if err != nil {
			return 0, fmt.Errorf("size metadata %d: %w", index, err)
		}
		total += billed(int64(len(doc)))
	}
	return total, nil
}

// Required returns the amount the uploader must hold to store size bytes:
// the quoted price times the multiplier, rounded up.
func (e *Estimator) Required(ctx context.Context, size uint64) (*big.Int, error) {
	price, err := e.Oracle.Price(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("query price for %d bytes: %w", size, err)
	}
	multiplier := e.Multiplier
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		multiplier = DefaultFeeMultiplier
	}
	required := decimal.NewFromBigInt(price, 0).Mul(multiplier).Ceil().BigInt()

	zap.L().Debug("Upload cost estimated",
		zap.Uint64("totalSize", size),
		zap.String("price", price.String()),
		zap.String("required", required.String()))
	return required, nil
}

// Estimate sizes the selection and prices it.
func (e *Estimator) Estimate(ctx context.Context, pairs map[int]model.AssetPair, sel Selection) (uint64, *big.Int, error) {
	size, err := TotalSize(pairs, sel)
	if err != nil {
		return 0, nil, err
	}
	required, err := e.Required(ctx, size)
	if err != nil {
		return 0, nil, err
	}
	return size, required, nil
}
