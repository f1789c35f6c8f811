//go:build e2e

package e2e

import (
	"context"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shamank/sugar-go/pkg/blockchain"
	"github.com/shamank/sugar-go/pkg/bundlr"
	"github.com/shamank/sugar-go/pkg/config"
)

func generatedKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func TestETHClientCluster(t *testing.T) {
	rpc := os.Getenv("ETH_RPC_URL")
	if rpc == "" {
		t.Skip("ETH_RPC_URL not set")
	}
	cli, err := blockchain.InitEvm(rpc, generatedKey(t), config.Timeouts{})
	if err != nil {
		t.Fatalf("InitEvm error: %v", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cluster, err := cli.Cluster(ctx)
	if err != nil {
		t.Fatalf("Cluster error: %v", err)
	}
	t.Logf("cluster %s, node %s", cluster, bundlr.NodeFor(cluster))
}

func TestBundlrDevnetPriceAndBalance(t *testing.T) {
	if os.Getenv("BUNDLR_E2E") == "" {
		t.Skip("BUNDLR_E2E not set")
	}
	_, key, err := blockchain.ParsePrivateKeyECDSA(generatedKey(t))
	if err != nil {
		t.Fatal(err)
	}
	client, err := bundlr.NewClient(bundlr.DevnetNode, "ethereum", key, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	price, err := client.Price(ctx, 12000)
	if err != nil {
		t.Fatalf("Price error: %v", err)
	}
	if price.Sign() <= 0 {
		t.Fatalf("price = %s", price)
	}
	balance, err := client.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("fresh key has balance %s", balance)
	}
	if _, err := client.DepositAddress(ctx); err != nil {
		t.Fatalf("DepositAddress error: %v", err)
	}
}
