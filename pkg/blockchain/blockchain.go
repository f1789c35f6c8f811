package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shamank/sugar-go/pkg/config"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client used by EVMClient.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Cluster identifies the deployment a chain belongs to.
type Cluster int

const (
	Devnet Cluster = iota
	Mainnet
)

// String returns the lower-case cluster name.
func (c Cluster) String() string {
	if c == Mainnet {
		return "mainnet"
	}
	return "devnet"
}

// mainnetChainID is the only chain treated as Mainnet; every other chain id
// (testnets, local nodes) targets the devnet storage deployment.
var mainnetChainID = big.NewInt(1)

// EVMClient holds a connected chain backend and the key used to sign
// transfers.
type EVMClient struct {
	Client   Backend
	key      *ecdsa.PrivateKey
	address  common.Address
	timeouts config.Timeouts
}

// InitEvm dials the chain endpoint and binds the hex-encoded private key.
func InitEvm(endpoint, privateKey string, timeouts config.Timeouts) (*EVMClient, error) {
	address, key, err := ParsePrivateKeyECDSA(privateKey)
	if err != nil {
		zap.L().Error("Failed to parse private key", zap.Error(err))
		return nil, err
	}

	client, err := ethclient.Dial(endpoint)
	if err != nil {
		zap.L().Error("Failed to ethdial", zap.Error(err))
		return nil, err
	}

	evm := NewEVMClient(client, key, timeouts)
	zap.L().Debug("EVM client initialized", zap.String("address", address.Hex()))
	return evm, nil
}

// NewEVMClient wraps an existing backend.
func NewEVMClient(backend Backend, key *ecdsa.PrivateKey, timeouts config.Timeouts) *EVMClient {
	evm := &EVMClient{
		Client:   backend,
		key:      key,
		timeouts: timeouts.WithDefaults(),
	}
	if addr := GetAddressFromPrivateKeyECDSA(key); addr != nil {
		evm.address = *addr
	}
	return evm
}

// Address returns the address derived from the signing key.
func (evm *EVMClient) Address() common.Address {
	return evm.address
}

// PrivateKey returns the signing key.
func (evm *EVMClient) PrivateKey() *ecdsa.PrivateKey {
	return evm.key
}

// Cluster reads the chain id and maps it to a storage deployment. Failures are
// returned as is; the caller cannot pick a deployment without this answer.
func (evm *EVMClient) Cluster(ctx context.Context) (Cluster, error) {
	if evm.Client == nil {
		return Devnet, errors.New("ethereum client not configured")
	}
	ctx, cancel := withTimeout(ctx, evm.timeouts.ChainRead)
	defer cancel()

	chainID, err := evm.Client.ChainID(ctx)
	if err != nil {
		zap.L().Error("failed to get chain ID", zap.Error(err))
		return Devnet, err
	}
	if chainID.Cmp(mainnetChainID) == 0 {
		return Mainnet, nil
	}
	return Devnet, nil
}

// WalletBalance returns the native balance of the signing address.
func (evm *EVMClient) WalletBalance(ctx context.Context) (*big.Int, error) {
	ctx, cancel := withTimeout(ctx, evm.timeouts.ChainRead)
	defer cancel()
	return evm.Client.BalanceAt(ctx, evm.address, nil)
}

// Close releases the underlying connection.
func (evm *EVMClient) Close() {
	if evm.Client != nil {
		evm.Client.Close()
	}
}
