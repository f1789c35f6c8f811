package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// transferGas is the fixed gas cost of a plain value transfer.
const transferGas = 21000

// withTimeout returns ctx unchanged if d <= 0, otherwise returns a child context with timeout d.
// The returned cancel function is always non-nil and should be called to release resources.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Transfer sends amount wei from the signing address to the hex address to and
// blocks until the transaction is mined. It returns the transaction hash,
// which the storage node uses to credit the deposit. The transaction is not
// resubmitted on failure: once mined it is final.
func (evm *EVMClient) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	if evm.key == nil {
		return "", errors.New("private key is required for transactions")
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid deposit address %q", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("invalid transfer amount %v", amount)
	}
	recipient := common.HexToAddress(to)

	tx, err := evm.signTransfer(ctx, recipient, amount)
	if err != nil {
		return "", err
	}

	zap.L().Info("Funding address",
		zap.String("from", evm.address.Hex()),
		zap.String("to", recipient.Hex()),
		zap.String("wei", amount.String()),
		zap.String("ether", WeiToEther(amount).String()))

	submitCtx, cancel := withTimeout(ctx, evm.timeouts.ChainSubmit)
	err = evm.Client.SendTransaction(submitCtx, tx)
	cancel()
	if err != nil {
		zap.L().Error("failed to send transfer", zap.Error(err))
		return "", fmt.Errorf("send transfer: %w", err)
	}

	waitCtx, cancel := withTimeout(ctx, evm.timeouts.ReceiptWait)
	defer cancel()
	if _, err := evm.WaitForTransaction(waitCtx, tx.Hash(), 8*time.Second); err != nil {
		return "", fmt.Errorf("confirm transfer %s: %w", tx.Hash().Hex(), err)
	}

	zap.L().Info("Transfer confirmed", zap.String("txHash", tx.Hash().Hex()))
	return tx.Hash().Hex(), nil
}

// signTransfer builds and signs a legacy value transfer using the pending
// nonce and the suggested gas price.
func (evm *EVMClient) signTransfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	readCtx, cancel := withTimeout(ctx, evm.timeouts.ChainRead)
	defer cancel()

	chainID, err := evm.Client.ChainID(readCtx)
	if err != nil {
		zap.L().Error("failed to get chain ID", zap.Error(err))
		return nil, err
	}
	nonce, err := evm.Client.PendingNonceAt(readCtx, evm.address)
	if err != nil {
		zap.L().Error("failed to get nonce", zap.Error(err))
		return nil, err
	}
	gasPrice, err := evm.Client.SuggestGasPrice(readCtx)
	if err != nil {
		zap.L().Error("failed to get gas price", zap.Error(err))
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), evm.key)
	if err != nil {
		zap.L().Error("failed to sign transfer", zap.Error(err))
		return nil, err
	}
	return signed, nil
}

// WaitForTransaction polls for a transaction receipt with exponential backoff,
// until receipt is available, context is done, or an error occurs. If maxBackoff
// is non-zero, backoff will not exceed it. It returns an error if the tx is reverted.
func (evm *EVMClient) WaitForTransaction(ctx context.Context, txHash common.Hash, maxBackoff time.Duration) (*types.Receipt, error) {
	backoff := 500 * time.Millisecond
	for {
		receipt, err := evm.Client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, fmt.Errorf("tx reverted: %s", txHash)
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("receipt error: %w", err)
		}
	}
}
