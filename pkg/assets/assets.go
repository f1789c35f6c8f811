// Package assets discovers asset pairs (image, metadata and optional
// animation) in a directory and rewrites metadata documents with the links
// produced by an upload.
package assets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shamank/sugar-go/pkg/model"
	"go.uber.org/zap"
)

var (
	imageExtensions = map[string]bool{
		"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "svg": true,
	}
	animationExtensions = map[string]bool{
		"mp4": true, "mov": true, "webm": true, "glb": true, "gltf": true,
		"mp3": true, "wav": true, "ogg": true, "flac": true, "html": true,
	}
)

// ID returns the cache identifier of a file: its base name without extension.
func ID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extension returns the lower-case extension of path without the leading dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Load scans dir for numbered assets ("0.png", "0.json", "0.mp4", ...) and
// returns them keyed by their number. Every number must have exactly one image
// and one metadata document; the animation is optional.
func Load(dir string) (map[int]model.AssetPair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read assets dir: %w", err)
	}

	pairs := make(map[int]model.AssetPair)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		index, err := strconv.Atoi(ID(name))
		if err != nil {
			zap.L().Debug("Skipping file without numeric name", zap.String("file", name))
			continue
		}
		path := filepath.Join(dir, name)
		pair := pairs[index]
		pair.Name = strconv.Itoa(index)

		ext := Extension(name)
		switch {
		case ext == "json":
			pair.Metadata = path
		case imageExtensions[ext]:
			if pair.Image != "" {
				return nil, fmt.Errorf("asset %d has more than one image: %s and %s", index, pair.Image, path)
			}
			pair.Image = path
		case animationExtensions[ext]:
			if pair.Animation != "" {
				return nil, fmt.Errorf("asset %d has more than one animation: %s and %s", index, pair.Animation, path)
			}
			pair.Animation = path
		default:
			zap.L().Debug("Skipping file with unknown extension", zap.String("file", name))
			continue
		}
		pairs[index] = pair
	}

	for _, index := range SortedIndices(pairs) {
		pair := pairs[index]
		if pair.Image == "" || pair.Metadata == "" {
			return nil, fmt.Errorf("asset %d is missing its image or metadata file", index)
		}
		if pair.ImageHash, err = HashFile(pair.Image); err != nil {
			return nil, err
		}
		if pair.MetadataHash, err = HashFile(pair.Metadata); err != nil {
			return nil, err
		}
		if pair.HasAnimation() {
			if pair.AnimationHash, err = HashFile(pair.Animation); err != nil {
				return nil, err
			}
		}
		pairs[index] = pair
	}
	return pairs, nil
}

// SortedIndices returns the keys of pairs in ascending order.
func SortedIndices(pairs map[int]model.AssetPair) []int {
	indices := make([]int, 0, len(pairs))
	for index := range pairs {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// HashFile returns the hex-encoded SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// UpdatedMetadata returns the metadata document at path with its image and
// animation references replaced by the given links. The file on disk is left
// untouched so that its hash keeps matching the cache. Fields the rewrite does
// not know about are preserved.
func UpdatedMetadata(path, imageLink string, animationLink *string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}

	// Numbers stay json.Number so large integers survive the rewrite.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}

	oldImage, _ := doc["image"].(string)
	oldAnimation, _ := doc["animation_url"].(string)

	if properties, ok := doc["properties"].(map[string]any); ok {
		if files, ok := properties["files"].([]any); ok {
			for _, f := range files {
				file, ok := f.(map[string]any)
				if !ok {
					continue
				}
				uri, _ := file["uri"].(string)
				if uri == oldImage {
					file["uri"] = imageLink
				}
				if animationLink != nil && oldAnimation != "" && uri == oldAnimation {
					file["uri"] = *animationLink
				}
			}
		}
	}

	doc["image"] = imageLink
	if animationLink != nil {
		doc["animation_url"] = *animationLink
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode metadata %s: %w", path, err)
	}
	return out, nil
}
