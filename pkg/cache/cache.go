// Package cache persists the upload status of every asset: the links produced
// for its image, metadata and animation, together with the hashes of the files
// those links were produced from. The cache is loaded once per run, mutated in
// memory by the upload scheduler and committed to disk with Sync.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/facebookgo/atomicfile"
	"github.com/shamank/sugar-go/pkg/assets"
	"github.com/shamank/sugar-go/pkg/model"
	"go.uber.org/zap"
)

// Item is the per-asset record stored in the cache file.
type Item struct {
	Name          string `json:"name"`
	ImageHash     string `json:"image_hash"`
	ImageLink     string `json:"image_link"`
	MetadataHash  string `json:"metadata_hash"`
	MetadataLink  string `json:"metadata_link"`
	OnChain       bool   `json:"onChain"`
	AnimationHash string `json:"animation_hash,omitempty"`
	AnimationLink string `json:"animation_link,omitempty"`
}

// Link returns the stored link for kind, or "" when nothing was uploaded yet.
func (i *Item) Link(kind model.DataKind) string {
	switch kind {
	case model.Image:
		return i.ImageLink
	case model.Metadata:
		return i.MetadataLink
	case model.Animation:
		return i.AnimationLink
	default:
		return ""
	}
}

// SetLink records link as the uploaded location of kind.
func (i *Item) SetLink(kind model.DataKind, link string) {
	switch kind {
	case model.Image:
		i.ImageLink = link
	case model.Metadata:
		i.MetadataLink = link
	case model.Animation:
		i.AnimationLink = link
	}
}

// AnimationLinkPtr returns the animation link as an optional value.
func (i *Item) AnimationLinkPtr() *string {
	if i.AnimationLink == "" {
		return nil
	}
	link := i.AnimationLink
	return &link
}

// Program holds the on-chain addresses created from this cache, if any.
type Program struct {
	CandyMachine        string `json:"candyMachine"`
	CandyMachineCreator string `json:"candyMachineCreator"`
	CollectionMint      string `json:"collectionMint"`
}

// Items is an insertion-ordered mapping from asset identifier to Item. Its
// JSON form is an object whose keys keep that order across Sync/Load cycles.
type Items struct {
	keys []string
	m    map[string]*Item
}

// Get returns the item stored under id.
func (it *Items) Get(id string) (*Item, bool) {
	item, ok := it.m[id]
	return item, ok
}

// Set stores item under id, appending id to the order if it is new.
func (it *Items) Set(id string, item *Item) {
	if it.m == nil {
		it.m = make(map[string]*Item)
	}
	if _, ok := it.m[id]; !ok {
		it.keys = append(it.keys, id)
	}
	it.m[id] = item
}

// Keys returns the identifiers in insertion order.
func (it *Items) Keys() []string {
	return append([]string(nil), it.keys...)
}

// Len returns the number of items.
func (it *Items) Len() int {
	return len(it.keys)
}

// MarshalJSON encodes the items as a JSON object in insertion order.
func (it Items) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range it.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(it.m[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
func (it *Items) UnmarshalJSON(data []byte) error {
	it.keys = nil
	it.m = make(map[string]*Item)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("cache items: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("cache items: unexpected key %v", tok)
		}
		var item Item
		if err := dec.Decode(&item); err != nil {
			return fmt.Errorf("cache item %s: %w", key, err)
		}
		it.Set(key, &item)
	}
	_, err = dec.Token()
	return err
}

// Cache is the in-memory view of the cache file. Only the upload scheduler
// mutates it during a run; Sync may be called from that same control flow.
type Cache struct {
	Program Program `json:"program"`
	Items   Items   `json:"items"`

	path string
	mu   sync.Mutex
}

// New returns an empty cache bound to path.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the cache file at path. A missing file yields an empty cache
// bound to path, so a first run and a resumed run look the same to callers.
func Load(path string) (*Cache, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Debug("Cache file not found, starting empty", zap.String("path", path))
		return New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}

	c := New(path)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	return c, nil
}

// Path returns the file the cache is synchronized to.
func (c *Cache) Path() string {
	return c.path
}

// Sync writes the whole cache to its file. The snapshot is written to a
// temporary file in the same directory and renamed over the previous one, so
// a reader (or a crash) never observes a partially written cache.
func (c *Cache) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	f, err := atomicfile.New(c.path, 0o644)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", c.path, err)
	}
	if _, err := f.Write(data); err != nil {
		if aerr := f.Abort(); aerr != nil {
			zap.L().Error("failed to abort cache write", zap.Error(aerr))
		}
		return fmt.Errorf("write cache %s: %w", c.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit cache %s: %w", c.path, err)
	}
	zap.L().Debug("Cache synchronized", zap.String("path", c.path), zap.Int("items", c.Items.Len()))
	return nil
}

// Prime makes sure every asset has a cache item and that stored links still
// describe the files on disk. A link whose file hash changed is cleared; a
// cleared image or animation link also clears the metadata link, since the
// metadata embeds it.
func (c *Cache) Prime(pairs map[int]model.AssetPair) {
	for _, index := range assets.SortedIndices(pairs) {
		pair := pairs[index]
		id := strconv.Itoa(index)

		item, ok := c.Items.Get(id)
		if !ok {
			c.Items.Set(id, &Item{
				Name:          pair.Name,
				ImageHash:     pair.ImageHash,
				MetadataHash:  pair.MetadataHash,
				AnimationHash: pair.AnimationHash,
			})
			continue
		}

		staleMedia := false
		if item.ImageHash != pair.ImageHash {
			item.ImageHash = pair.ImageHash
			item.ImageLink = ""
			staleMedia = true
		}
		if item.AnimationHash != pair.AnimationHash {
			item.AnimationHash = pair.AnimationHash
			item.AnimationLink = ""
			staleMedia = true
		}
		if item.MetadataHash != pair.MetadataHash || staleMedia {
			item.MetadataHash = pair.MetadataHash
			item.MetadataLink = ""
			item.OnChain = false
		}
	}
}
