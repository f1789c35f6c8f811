package upload

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/shamank/sugar-go/pkg/assets"
	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/model"
)

// Task is one file awaiting upload. Metadata tasks carry the links their
// document must point at.
type Task struct {
	Index         int
	AssetID       string
	Path          string
	Kind          model.DataKind
	ImageLink     string
	AnimationLink *string
	Tags          []model.Tag
}

// Payload returns the bytes to upload: the file as stored for media, the
// rewritten document for metadata.
func (t Task) Payload() ([]byte, error) {
	if t.Kind == model.Metadata {
		return assets.UpdatedMetadata(t.Path, t.ImageLink, t.AnimationLink)
	}
	return os.ReadFile(t.Path)
}

// PendingIndices returns, in ascending order, the indices of kind that still
// need an upload. An asset whose cache item already holds a link for kind is
// treated as done, which makes re-running against the same cache resume
// where the previous run stopped.
func PendingIndices(pairs map[int]model.AssetPair, c *cache.Cache, kind model.DataKind) []int {
	var out []int
	for index, pair := range pairs {
		if kind == model.Animation && !pair.HasAnimation() {
			continue
		}
		item, ok := c.Items.Get(strconv.Itoa(index))
		if ok && item.Link(kind) != "" {
			continue
		}
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// BuildTasks creates one task per index, in the given order. All files must
// share one extension; metadata tasks read the current media links from the
// cache.
func BuildTasks(pairs map[int]model.AssetPair, c *cache.Cache, indices []int, kind model.DataKind, appName string) ([]Task, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	var ext string
	tasks := make([]Task, 0, len(indices))
	for i, index := range indices {
		pair, ok := pairs[index]
		if !ok {
			return nil, fmt.Errorf("asset %d not found", index)
		}
		id := strconv.Itoa(index)
		path := pair.Path(kind)
		if path == "" {
			return nil, fmt.Errorf("asset %s has no %s file", id, kind)
		}
		if i == 0 {
			ext = assets.Extension(path)
		} else if e := assets.Extension(path); e != ext {
			return nil, &UploadError{
				Kind:    KindContentType,
				AssetID: id,
				Err:     fmt.Errorf("%w: found %q and %q", ErrMixedExtensions, ext, e),
			}
		}

		item, ok := c.Items.Get(id)
		if !ok {
			return nil, fmt.Errorf("asset %s: %w", id, ErrMissingCacheItem)
		}

		task := Task{Index: index, AssetID: id, Path: path, Kind: kind}
		if kind == model.Metadata {
			task.ImageLink = item.ImageLink
			task.AnimationLink = item.AnimationLinkPtr()
		}
		tasks = append(tasks, task)
	}

	tags := []model.Tag{
		{Name: model.TagAppName, Value: appName},
		{Name: model.TagContentType, Value: kind.ContentType(ext)},
	}
	for i := range tasks {
		tasks[i].Tags = tags
	}
	return tasks, nil
}
