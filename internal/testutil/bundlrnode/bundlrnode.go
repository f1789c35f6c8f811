// Package bundlrnode provides an in-process fake of the Bundlr node HTTP API
// for tests: node info, balance, price, deposit notification and data item
// submission.
package bundlrnode

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// DefaultDepositAddress is the address reported by /info unless overridden.
const DefaultDepositAddress = "0x00000000000000000000000000000000000000b0"

// Node is a fake Bundlr node. Configure it with the setters before or during a
// test; all recorded calls are safe to read concurrently.
type Node struct {
	*httptest.Server

	currency string

	mu             sync.Mutex
	deposit        string
	balance        *big.Int
	pricePerByte   int64
	balanceFails   int
	balanceQueries int
	priceQueries   []uint64
	notified       []string
	uploads        [][]byte
	uploadID       func(n int, body []byte) (string, error)
}

// New starts a fake node for currency and closes it when the test ends.
func New(t testing.TB, currency string) *Node {
	t.Helper()
	n := &Node{
		currency:     currency,
		deposit:      DefaultDepositAddress,
		balance:      new(big.Int),
		pricePerByte: 1,
		uploadID: func(n int, _ []byte) (string, error) {
			return fmt.Sprintf("id-%d", n), nil
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /info", n.handleInfo)
	mux.HandleFunc("GET /account/balance/{cur}", n.handleBalance)
	mux.HandleFunc("GET /account/balance/{cur}/", n.handleBalance)
	mux.HandleFunc("POST /account/balance/{cur}", n.handleNotify)
	mux.HandleFunc("GET /price/{cur}/{size}", n.handlePrice)
	mux.HandleFunc("POST /tx/{cur}", n.handleUpload)
	n.Server = httptest.NewServer(mux)
	t.Cleanup(n.Close)
	return n
}

// SetDepositAddress changes the address returned by /info.
func (n *Node) SetDepositAddress(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deposit = addr
}

// SetBalance sets the balance reported for every address.
func (n *Node) SetBalance(v *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance = new(big.Int).Set(v)
}

// Credit adds v to the balance, as a settled deposit would.
func (n *Node) Credit(v *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance = new(big.Int).Add(n.balance, v)
}

// SetPricePerByte sets the price returned for each byte.
func (n *Node) SetPricePerByte(p int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pricePerByte = p
}

// FailBalance makes the next count balance queries answer 500.
func (n *Node) FailBalance(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balanceFails = count
}

// SetUploadID replaces the id generator. n counts uploads from 0; returning an
// error answers the upload with 500.
func (n *Node) SetUploadID(fn func(n int, body []byte) (string, error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uploadID = fn
}

// BalanceQueries returns how many balance queries were answered.
func (n *Node) BalanceQueries() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balanceQueries
}

// PriceQueries returns the byte sizes priced so far.
func (n *Node) PriceQueries() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.priceQueries...)
}

// Notified returns the transaction ids posted to the deposit endpoint.
func (n *Node) Notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notified...)
}

// Uploads returns the raw bodies posted to /tx.
func (n *Node) Uploads() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.uploads...)
}

func (n *Node) checkCurrency(w http.ResponseWriter, r *http.Request) bool {
	if cur := r.PathValue("cur"); cur != n.currency {
		http.Error(w, "unsupported currency "+cur, http.StatusBadRequest)
		return false
	}
	return true
}

func (n *Node) handleInfo(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	deposit := n.deposit
	n.mu.Unlock()
	writeJSON(w, map[string]any{
		"version":   "0.2.0",
		"addresses": map[string]string{n.currency: deposit},
		"gateway":   "arweave.net",
	})
}

func (n *Node) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !n.checkCurrency(w, r) {
		return
	}
	if r.URL.Query().Get("address") == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.balanceQueries++
	if n.balanceFails > 0 {
		n.balanceFails--
		n.mu.Unlock()
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
		return
	}
	balance := n.balance.String()
	n.mu.Unlock()
	writeJSON(w, map[string]string{"balance": balance})
}

func (n *Node) handleNotify(w http.ResponseWriter, r *http.Request) {
	if !n.checkCurrency(w, r) {
		return
	}
	var body struct {
		TxID string `json:"tx_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TxID == "" {
		http.Error(w, "tx_id required", http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.notified = append(n.notified, body.TxID)
	n.mu.Unlock()
	writeJSON(w, map[string]string{"confirmed": "true"})
}

func (n *Node) handlePrice(w http.ResponseWriter, r *http.Request) {
	if !n.checkCurrency(w, r) {
		return
	}
	size, err := strconv.ParseUint(r.PathValue("size"), 10, 64)
	if err != nil {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.priceQueries = append(n.priceQueries, size)
	price := new(big.Int).Mul(new(big.Int).SetUint64(size), big.NewInt(n.pricePerByte))
	n.mu.Unlock()
	_, _ = io.WriteString(w, price.String())
}

func (n *Node) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !n.checkCurrency(w, r) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	index := len(n.uploads)
	n.uploads = append(n.uploads, body)
	gen := n.uploadID
	n.mu.Unlock()

	id, err := gen(index, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"id": id})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
