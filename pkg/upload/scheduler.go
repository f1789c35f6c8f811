package upload

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/shamank/sugar-go/pkg/cache"
	"github.com/shamank/sugar-go/pkg/model"
	"github.com/shamank/sugar-go/pkg/storage"
	"go.uber.org/zap"
)

// DefaultParallelLimit bounds concurrent uploads when no limit is configured.
const DefaultParallelLimit = 45

// Uploader stores one file and returns its content id.
type Uploader interface {
	Upload(ctx context.Context, data []byte, tags []model.Tag) (string, error)
}

// Status is the outcome of a scheduler run.
type Status int

const (
	Successful Status = iota
	Failed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Successful:
		return "successful"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result summarizes a scheduler run.
type Result struct {
	Kind        model.DataKind
	Status      Status
	Total       int
	Uploaded    int
	Errors      []*UploadError
	Unresolved  int
	Checkpoints int

	// FailedCheckpoints counts checkpoint syncs that did not reach disk.
	FailedCheckpoints int
}

// Scheduler uploads tasks through a bounded pool of goroutines and records
// the resulting links in the cache. Workers only upload; every cache
// mutation and every Sync happens on the goroutine calling Run.
type Scheduler struct {
	Uploader  Uploader
	Gateway   string
	Limit     int
	Cache     *cache.Cache
	Interrupt *Interrupt
	// Progress, if set, is called after each harvested completion.
	Progress func(done, total int)
}

type taskResult struct {
	task Task
	link string
	err  error
}

// Run uploads tasks, at most Limit at a time, harvesting completions in the
// order they finish. Whenever fewer than half of the slots are busy and tasks
// are still pending, the cache is checkpointed and up to Limit/2 more tasks
// are dispatched, oldest first. Task failures are collected without stopping
// the run. A failed checkpoint stops dispatching, so no more uploads are paid
// for while their links cannot be persisted; the run then reports Failed. When the interrupt is set no further tasks are dispatched; tasks
// already running are awaited and recorded. The cache is synchronized once
// more on every exit path.
//
// The returned error is nil only when every task succeeded. An aborted run
// always returns an error wrapping ErrAborted.
func (s *Scheduler) Run(ctx context.Context, kind model.DataKind, tasks []Task) (*Result, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultParallelLimit
	}
	refill := max(1, limit/2)

	res := &Result{Kind: kind, Total: len(tasks)}
	pending := tasks
	results := make(chan taskResult, len(tasks))
	inFlight := 0

	dispatch := func(n int) {
		for ; n > 0 && len(pending) > 0; n-- {
			task := pending[0]
			pending = pending[1:]
			inFlight++
			go s.execute(ctx, task, results)
		}
	}

	zap.L().Info("Uploading files",
		zap.Stringer("kind", kind),
		zap.Int("count", len(tasks)),
		zap.Int("parallelLimit", limit))

	dispatch(limit)
	aborted := false
	var checkpointErr error
	for inFlight > 0 {
		if s.Interrupt.IsSet() || ctx.Err() != nil {
			aborted = true
			break
		}
		s.harvest(<-results, res)
		inFlight--

		if limit-inFlight > limit/2 && len(pending) > 0 {
			if err := s.Cache.Sync(); err != nil {
				zap.L().Error("Checkpoint failed, no further uploads dispatched", zap.Error(err))
				res.FailedCheckpoints++
				checkpointErr = fmt.Errorf("checkpoint cache: %w", err)
				break
			}
			res.Checkpoints++
			dispatch(refill)
		}
	}

	if aborted || checkpointErr != nil {
		if aborted {
			zap.L().Warn("Upload interrupted, waiting for running tasks", zap.Int("running", inFlight))
		}
		for ; inFlight > 0; inFlight-- {
			s.harvest(<-results, res)
		}
		res.Unresolved = len(pending)
	}

	syncErr := s.Cache.Sync()
	if syncErr != nil {
		zap.L().Error("Final cache sync failed", zap.Error(syncErr))
		syncErr = fmt.Errorf("sync cache: %w", syncErr)
	}

	errs := make([]error, 0, len(res.Errors)+3)
	switch {
	case aborted:
		res.Status = Aborted
		errs = append(errs, fmt.Errorf("%w: %d %s uploads not started", ErrAborted, res.Unresolved, kind))
	case checkpointErr != nil || len(res.Errors) > 0:
		res.Status = Failed
	default:
		res.Status = Successful
	}
	for _, e := range res.Errors {
		errs = append(errs, e)
	}
	errs = append(errs, checkpointErr, syncErr)

	zap.L().Info("Upload finished",
		zap.Stringer("kind", kind),
		zap.Stringer("status", res.Status),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("failed", len(res.Errors)),
		zap.Int("unresolved", res.Unresolved),
		zap.Int("checkpoints", res.Checkpoints))
	return res, errors.Join(errs...)
}

// harvest records one completion in the cache or the error list.
func (s *Scheduler) harvest(r taskResult, res *Result) {
	if r.err != nil {
		zap.L().Error("Upload failed", zap.String("assetId", r.task.AssetID), zap.Stringer("kind", r.task.Kind), zap.Error(r.err))
		res.Errors = append(res.Errors, &UploadError{Kind: KindSendDataFailed, AssetID: r.task.AssetID, Err: r.err})
	} else if item, ok := s.Cache.Items.Get(r.task.AssetID); !ok {
		res.Errors = append(res.Errors, &UploadError{Kind: KindSendDataFailed, AssetID: r.task.AssetID, Err: ErrMissingCacheItem})
	} else {
		item.SetLink(r.task.Kind, r.link)
		res.Uploaded++
		zap.L().Debug("Uploaded", zap.String("assetId", r.task.AssetID), zap.Stringer("kind", r.task.Kind), zap.String("link", r.link))
	}
	if s.Progress != nil {
		s.Progress(res.Uploaded+len(res.Errors), res.Total)
	}
}

// execute runs one task and always delivers exactly one result.
func (s *Scheduler) execute(ctx context.Context, task Task, out chan<- taskResult) {
	res := taskResult{task: task}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Upload task panicked", zap.String("assetId", task.AssetID), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res.link, res.err = "", fmt.Errorf("upload panicked: %v", r)
		}
		out <- res
	}()

	data, err := task.Payload()
	if err != nil {
		res.err = fmt.Errorf("read %s: %w", task.Path, err)
		return
	}
	id, err := s.Uploader.Upload(ctx, data, task.Tags)
	if err != nil {
		res.err = err
		return
	}
	res.link = storage.Link(s.Gateway, id)
}
