package blockchain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

func TestGetAddressFromPrivateKeyECDSA(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	addr := GetAddressFromPrivateKeyECDSA(priv)
	if addr == nil {
		t.Fatal("expected non-nil address")
	}
	want := crypto.PubkeyToAddress(priv.PublicKey)
	if *addr != want {
		t.Fatalf("unexpected address: got %s want %s", addr.Hex(), want.Hex())
	}

	if GetAddressFromPrivateKeyECDSA(nil) != nil {
		t.Fatal("expected nil for nil key")
	}
}

func TestParsePrivateKeyECDSA(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hexKey := hex.EncodeToString(crypto.FromECDSA(priv))

	for _, key := range []string{hexKey, "0x" + hexKey} {
		addr, parsedKey, err := ParsePrivateKeyECDSA(key)
		if err != nil {
			t.Fatalf("ParsePrivateKeyECDSA(%q): %v", key, err)
		}
		if addr != crypto.PubkeyToAddress(priv.PublicKey) {
			t.Fatalf("unexpected address: %s", addr.Hex())
		}
		if parsedKey.D.Cmp(priv.D) != 0 {
			t.Fatal("parsed key mismatch")
		}
	}

	if _, _, err := ParsePrivateKeyECDSA("zz"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestEtherToWei(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.25", "250000000000000000"},
		{"0.0000000000000000001", "0"},
	}

	for _, tc := range tests {
		got, err := EtherToWei(tc.input)
		if err != nil {
			t.Fatalf("EtherToWei(%v) error: %v", tc.input, err)
		}
		if got.String() != tc.expected {
			t.Fatalf("EtherToWei(%v) = %s, want %s", tc.input, got.String(), tc.expected)
		}
	}

	if _, err := EtherToWei("not-a-number"); err == nil {
		t.Fatal("expected error for invalid string")
	}
}

func TestWeiToEther(t *testing.T) {
	val := WeiToEther(big.NewInt(1500000000000000000))
	want := decimal.RequireFromString("1.5")
	if !val.Equal(want) {
		t.Fatalf("WeiToEther mismatch: got %s, want %s", val, want)
	}
	if !WeiToEther(nil).IsZero() {
		t.Fatal("expected zero for nil")
	}
}
