package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shamank/sugar-go/pkg/assets"
	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/model"
)

type uploaderFunc func(ctx context.Context, data []byte, tags []model.Tag) (string, error)

func (f uploaderFunc) Upload(ctx context.Context, data []byte, tags []model.Tag) (string, error) {
	return f(ctx, data, tags)
}

// writeAssets creates n assets in a temporary directory. Images hold
// "image-{i}"; metadata documents reference the image by file name.
func writeAssets(t *testing.T, n int, imageExt string) (map[int]model.AssetPair, *cache.Cache) {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		write(t, dir, fmt.Sprintf("%d.%s", i, imageExt), fmt.Sprintf("image-%d", i))
		meta := map[string]any{
			"name":  fmt.Sprintf("%d", i),
			"image": fmt.Sprintf("%d.%s", i, imageExt),
			"properties": map[string]any{
				"files": []any{map[string]any{"uri": fmt.Sprintf("%d.%s", i, imageExt), "type": "image/" + imageExt}},
			},
		}
		raw, _ := json.Marshal(meta)
		write(t, dir, fmt.Sprintf("%d.json", i), string(raw))
	}
	pairs, err := assets.Load(dir)
	if err != nil {
		t.Fatalf("assets.Load: %v", err)
	}
	c := cache.New(filepath.Join(t.TempDir(), "cache.json"))
	c.Prime(pairs)
	return pairs, c
}

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// assetOf returns the asset number encoded in an uploaded payload.
func assetOf(data []byte) string {
	if s, ok := strings.CutPrefix(string(data), "image-"); ok {
		return s
	}
	var doc struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "?"
	}
	return doc.Name
}

func indicesUpTo(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
