package sdk

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shamank/sugar-go/internal/testutil/bundlrnode"
	"github.com/shamank/sugar-go/pkg/bundlr"
	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/config"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shamank/sugar-go/pkg/upload"
)

func testKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key))
}

// rpcServer answers eth_chainId with chainID, eth_getBalance with one ether
// and fails every other call.
func rpcServer(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_chainId":
			resp["result"] = chainID
		case "eth_getBalance":
			resp["result"] = "0xde0b6b3a7640000"
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeCollection creates n assets. Every asset gets an image; with
// animations each also gets an mp4.
func writeCollection(t *testing.T, n int, animations bool) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		writeFile(t, dir, fmt.Sprintf("%d.png", i), fmt.Sprintf("image-%d", i))
		meta := map[string]any{
			"name":  fmt.Sprintf("%d", i),
			"image": fmt.Sprintf("%d.png", i),
			"properties": map[string]any{
				"files": []any{map[string]any{"uri": fmt.Sprintf("%d.png", i), "type": "image/png"}},
			},
		}
		if animations {
			writeFile(t, dir, fmt.Sprintf("%d.mp4", i), fmt.Sprintf("animation-%d", i))
			meta["animation_url"] = fmt.Sprintf("%d.mp4", i)
		}
		raw, _ := json.Marshal(meta)
		writeFile(t, dir, fmt.Sprintf("%d.json", i), string(raw))
	}
	return dir
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// contentID names uploads after their payload: img-N, anim-N or meta-N.
func contentID(_ int, body []byte) (string, error) {
	item, err := bundlr.ParseDataItem(body)
	if err != nil {
		return "", err
	}
	data := string(item.Data)
	if s, ok := strings.CutPrefix(data, "image-"); ok {
		return "img-" + s, nil
	}
	if s, ok := strings.CutPrefix(data, "animation-"); ok {
		return "anim-" + s, nil
	}
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(item.Data, &doc); err != nil {
		return "", err
	}
	return "meta-" + doc.Name, nil
}

func newBundlrCore(t *testing.T, node *bundlrnode.Node) *Core {
	t.Helper()
	cfg := &config.Config{
		RPCAddr:       "http://127.0.0.1:1",
		PrivateKey:    testKey(t),
		BundlrNode:    node.URL,
		ParallelLimit: 2,
		Funding:       config.Funding{MaxRetries: 3, PollInterval: time.Millisecond},
		Timeouts:      config.Timeouts{HTTP: 5 * time.Second},
	}
	core, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(core.Close)
	return core
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(context.Background(), &config.Config{}); err == nil {
		t.Fatal("expected error for missing RPC address")
	}
	_, err := New(context.Background(), &config.Config{RPCAddr: "http://127.0.0.1:1", PrivateKey: "zz"})
	if err == nil {
		t.Fatal("expected error for invalid private key")
	}
}

func TestNew_SelectsNodeByCluster(t *testing.T) {
	tests := []struct {
		chainID string
		want    string
	}{
		{"0x1", bundlr.MainnetNode},
		{"0xaa36a7", bundlr.DevnetNode},
		{"0x89", bundlr.DevnetNode},
	}
	for _, tt := range tests {
		t.Run(tt.chainID, func(t *testing.T) {
			rpc := rpcServer(t, tt.chainID)
			core, err := New(context.Background(), &config.Config{RPCAddr: rpc.URL, PrivateKey: testKey(t)})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer core.Close()
			if got := core.NodeURL(); got != tt.want {
				t.Fatalf("NodeURL = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew_ClusterUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(context.Background(), &config.Config{RPCAddr: srv.URL, PrivateKey: testKey(t)})
	if err == nil || !strings.Contains(err.Error(), "select storage node") {
		t.Fatalf("err = %v", err)
	}
}

func TestUpload_Bundlr(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	node.SetBalance(big.NewInt(1_000_000_000))
	node.SetUploadID(contentID)
	core := newBundlrCore(t, node)

	var mu sync.Mutex
	progress := map[model.DataKind]int{}
	core.Progress = func(kind model.DataKind, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		progress[kind] = done
		if total != 3 {
			t.Errorf("%s total = %d, want 3", kind, total)
		}
	}

	dir := writeCollection(t, 3, true)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	report, err := core.Upload(context.Background(), dir, cachePath, &upload.Interrupt{})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if report.Status != upload.Successful || report.Uploaded() != 9 || report.Failed() != 0 {
		t.Fatalf("report = %+v, uploaded %d", report, report.Uploaded())
	}
	for _, kind := range []model.DataKind{model.Image, model.Animation, model.Metadata} {
		if progress[kind] != 3 {
			t.Fatalf("progress[%s] = %d", kind, progress[kind])
		}
	}
	if n := len(node.Notified()); n != 0 {
		t.Fatalf("funded %d times with sufficient balance", n)
	}

	stored, err := cache.Load(cachePath)
	if err != nil {
		t.Fatalf("cache.Load: %v", err)
	}
	item, ok := stored.Items.Get("1")
	if !ok {
		t.Fatal("asset 1 missing from cache")
	}
	want := map[model.DataKind]string{
		model.Image:     "https://arweave.net/img-1",
		model.Animation: "https://arweave.net/anim-1",
		model.Metadata:  "https://arweave.net/meta-1",
	}
	for kind, link := range want {
		if got := item.Link(kind); got != link {
			t.Fatalf("%s link = %s, want %s", kind, got, link)
		}
	}

	for _, body := range node.Uploads() {
		di, err := bundlr.ParseDataItem(body)
		if err != nil {
			t.Fatalf("ParseDataItem: %v", err)
		}
		if err := di.Verify(); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		var doc map[string]any
		if json.Unmarshal(di.Data, &doc) != nil || doc["name"] != "1" {
			continue
		}
		if doc["image"] != want[model.Image] || doc["animation_url"] != want[model.Animation] {
			t.Fatalf("metadata links not rewritten: %v", doc)
		}
		if di.Tags[1] != (model.Tag{Name: model.TagContentType, Value: "application/json"}) {
			t.Fatalf("metadata tags = %v", di.Tags)
		}
	}
}

func TestUpload_ResumeSkipsLinked(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	node.SetBalance(big.NewInt(1_000_000_000))
	core := newBundlrCore(t, node)

	dir := writeCollection(t, 2, false)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	if _, err := core.Upload(context.Background(), dir, cachePath, nil); err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	uploads, prices := len(node.Uploads()), len(node.PriceQueries())

	report, err := core.Upload(context.Background(), dir, cachePath, nil)
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if report.Status != upload.Successful || report.Uploaded() != 0 || report.Assets != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(node.Uploads()) != uploads || len(node.PriceQueries()) != prices {
		t.Fatal("resumed run talked to the node")
	}
}

func TestUpload_MediaFailureSkipsMetadata(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	node.SetBalance(big.NewInt(1_000_000_000))
	node.SetUploadID(func(n int, body []byte) (string, error) {
		id, err := contentID(n, body)
		if id == "img-1" {
			return "", errors.New("disk full")
		}
		return id, err
	})
	core := newBundlrCore(t, node)

	dir := writeCollection(t, 3, false)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	report, err := core.Upload(context.Background(), dir, cachePath, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var upErr *upload.UploadError
	if !errors.As(err, &upErr) || upErr.Kind != upload.KindSendDataFailed || upErr.AssetID != "1" {
		t.Fatalf("err = %v", err)
	}
	if report.Status != upload.Failed || report.Uploaded() != 2 || report.Failed() != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Results) != 1 {
		t.Fatalf("metadata stage ran: %d results", len(report.Results))
	}

	stored, err := cache.Load(cachePath)
	if err != nil {
		t.Fatalf("cache.Load: %v", err)
	}
	for _, id := range []string{"0", "2"} {
		item, _ := stored.Items.Get(id)
		if item.Link(model.Image) == "" || item.Link(model.Metadata) != "" {
			t.Fatalf("asset %s links = %+v", id, item)
		}
	}
}

func TestUpload_Interrupted(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	node.SetBalance(big.NewInt(1_000_000_000))
	core := newBundlrCore(t, node)

	interrupt := &upload.Interrupt{}
	interrupt.Set()
	dir := writeCollection(t, 2, false)
	report, err := core.Upload(context.Background(), dir, filepath.Join(t.TempDir(), "cache.json"), interrupt)
	if !errors.Is(err, upload.ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if report.Status != upload.Aborted || len(node.Uploads()) != 0 {
		t.Fatalf("report = %+v, uploads = %d", report, len(node.Uploads()))
	}
}

func TestUpload_NoAssets(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	core := newBundlrCore(t, node)
	if _, err := core.Upload(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "cache.json"), nil); err == nil {
		t.Fatal("expected error for empty assets dir")
	}
}

func TestBalance(t *testing.T) {
	node := bundlrnode.New(t, "ethereum")
	node.SetBalance(big.NewInt(4242))
	core := newBundlrCore(t, node)

	got, err := core.Balance(context.Background())
	if err != nil || got.Int64() != 4242 {
		t.Fatalf("Balance = %v, %v", got, err)
	}

	ipfs, err := New(context.Background(), &config.Config{UploadMethod: config.IPFS})
	if err != nil {
		t.Fatalf("New ipfs: %v", err)
	}
	defer ipfs.Close()
	if _, err := ipfs.Balance(context.Background()); err == nil {
		t.Fatal("expected error for ipfs balance")
	}
	if _, err := ipfs.WalletBalance(context.Background()); err == nil {
		t.Fatal("expected error for ipfs wallet balance")
	}
	if ipfs.NodeURL() != "" {
		t.Fatalf("NodeURL = %q", ipfs.NodeURL())
	}
}

func TestWalletBalance(t *testing.T) {
	rpc := rpcServer(t, "0x1")
	node := bundlrnode.New(t, "ethereum")
	core, err := New(context.Background(), &config.Config{RPCAddr: rpc.URL, PrivateKey: testKey(t), BundlrNode: node.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer core.Close()

	got, err := core.WalletBalance(context.Background())
	if err != nil {
		t.Fatalf("WalletBalance: %v", err)
	}
	if want, _ := new(big.Int).SetString("1000000000000000000", 10); got.Cmp(want) != 0 {
		t.Fatalf("WalletBalance = %s, want %s", got, want)
	}
}
