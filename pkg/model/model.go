// Package model defines the data structures shared by the upload pipeline:
// asset pairs discovered on disk, the data kinds that can be uploaded, and the
// descriptive tags attached to every upload.
package model

import (
	"fmt"
	"strings"
)

// AssetPair groups the files that make up one logical asset: an image, its
// metadata document and an optional animation. Paths are kept as found on
// disk; the pipeline references pairs by index and never mutates them.
type AssetPair struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	ImageHash string `json:"image_hash"`
	Metadata  string `json:"metadata"`
	// MetadataHash is the SHA-256 of the metadata document as stored on disk.
	MetadataHash  string `json:"metadata_hash"`
	Animation     string `json:"animation,omitempty"`
	AnimationHash string `json:"animation_hash,omitempty"`
}

// HasAnimation reports whether the asset carries an animation file.
func (a AssetPair) HasAnimation() bool {
	return a.Animation != ""
}

// Path returns the file path of the asset for the given data kind.
func (a AssetPair) Path(kind DataKind) string {
	switch kind {
	case Image:
		return a.Image
	case Metadata:
		return a.Metadata
	case Animation:
		return a.Animation
	default:
		return ""
	}
}

// DataKind selects which file of an asset an upload concerns.
type DataKind int

const (
	Image DataKind = iota
	Metadata
	Animation
)

// String returns the lower-case name of the data kind.
func (k DataKind) String() string {
	switch k {
	case Image:
		return "image"
	case Metadata:
		return "metadata"
	case Animation:
		return "animation"
	default:
		return fmt.Sprintf("DataKind(%d)", int(k))
	}
}

// ContentType returns the MIME type advertised for files of this kind with
// the given extension (without the leading dot).
func (k DataKind) ContentType(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	switch k {
	case Image:
		return "image/" + ext
	case Animation:
		return "video/" + ext
	default:
		return "application/json"
	}
}

// Tag is a name/value pair attached to an upload (App-Name, Content-Type).
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Tag names understood by the storage network gateways.
const (
	TagAppName     = "App-Name"
	TagContentType = "Content-Type"
)
