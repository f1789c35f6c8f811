package upload

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrInsufficientBalance is returned when the storage balance is still
	// below the required amount after the funding poll budget is spent.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrMixedExtensions is returned when the files of one batch do not share
	// an extension, which would make the Content-Type tag ambiguous.
	ErrMixedExtensions = errors.New("all files in a batch must share one extension")
	// ErrAborted marks a run stopped by the interrupt token.
	ErrAborted = errors.New("upload aborted by user")
	// ErrMissingCacheItem is returned when a selected asset has no cache item.
	ErrMissingCacheItem = errors.New("missing cache item")
)

// ErrorKind classifies an UploadError.
type ErrorKind int

const (
	KindInsufficientBalance ErrorKind = iota
	KindSendDataFailed
	KindContentType
)

func (k ErrorKind) String() string {
	switch k {
	case KindInsufficientBalance:
		return "insufficient balance"
	case KindSendDataFailed:
		return "send data failed"
	case KindContentType:
		return "content type"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// UploadError describes why the upload of one asset failed.
type UploadError struct {
	Kind    ErrorKind
	AssetID string
	Err     error
}

func (e *UploadError) Error() string {
	if e.AssetID == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("asset %s: %s: %v", e.AssetID, e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Interrupt is a cooperative cancellation token. It is set from outside the
// pipeline (typically a signal handler) and polled by the scheduler once per
// harvested completion. A nil *Interrupt is never set.
type Interrupt struct {
	flag atomic.Bool
}

// Set requests cancellation.
func (i *Interrupt) Set() {
	i.flag.Store(true)
}

// IsSet reports whether cancellation was requested.
func (i *Interrupt) IsSet() bool {
	return i != nil && i.flag.Load()
}
