package workers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/photoingest/brackets"
	"github.com/camden-git/photoingest/locations"
	"github.com/camden-git/photoingest/media"
	"github.com/camden-git/photoingest/models"
	"github.com/camden-git/photoingest/repository"
)

// ErrScanInProgress is returned by Scan when another scan on the same
// orchestrator has not finished.
var ErrScanInProgress = errors.New("scan already in progress")

// DefaultExtensions are the file types collected by SetDirectories.
var DefaultExtensions = []string{".CR2", ".CR3", ".JPG", ".JPEG"}

type Options struct {
	NumWorkers         int
	WriteQueueSize     int
	Extensions         []string
	DetectBrackets     bool
	BracketMaxDuration time.Duration
}

// ScanSummary is the outcome of one scan.
type ScanSummary struct {
	RunID       string
	Total       int
	Processed   int
	Skipped     int
	Failed      int
	GroupsFound int
	Errors      []*FileError
	Duration    time.Duration
}

// Orchestrator discovers candidate files and runs them through a fixed pool
// of workers. Workers extract metadata, resolve coordinates and hand the
// finished record to a WriteSerializer.
type Orchestrator struct {
	store     repository.PhotoRepositoryInterface
	extractor media.Extractor
	locator   locations.Resolver
	opts      Options
	log       *zap.Logger

	extensions map[string]bool

	mu    sync.Mutex
	files []string
	seen  map[string]bool

	scanning sync.Mutex
}

// NewOrchestrator builds an orchestrator. store must be safe for concurrent
// use (see repository.NewLockedPhotoRepository). locator may be nil when no
// location history is configured.
func NewOrchestrator(store repository.PhotoRepositoryInterface, extractor media.Extractor, locator locations.Resolver, opts Options, log *zap.Logger) *Orchestrator {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.WriteQueueSize <= 0 {
		opts.WriteQueueSize = defaultWriteQueueSize
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.BracketMaxDuration <= 0 {
		opts.BracketMaxDuration = brackets.DefaultMaxDuration
	}
	if log == nil {
		log = zap.NewNop()
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	return &Orchestrator{
		store:      store,
		extractor:  extractor,
		locator:    locator,
		opts:       opts,
		log:        log,
		extensions: exts,
		seen:       make(map[string]bool),
	}
}

// Accepts reports whether path has one of the configured extensions.
func (o *Orchestrator) Accepts(path string) bool {
	return o.extensions[strings.ToLower(filepath.Ext(path))]
}

// SetDirectories walks each directory recursively and adds every file with
// an accepted extension to the candidate list. A directory that cannot be
// opened is an error; unreadable subdirectories are logged and skipped.
func (o *Orchestrator) SetDirectories(dirs []string) error {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("ingest directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("ingest path %s is not a directory", dir)
		}

		var found []string
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if path == dir {
					return walkErr
				}
				o.log.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !o.Accepts(path) {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", dir, err)
		}

		added := o.AddFiles(found)
		o.log.Info("collected candidate files",
			zap.String("dir", dir),
			zap.Int("found", len(found)),
			zap.Int("added", added))
	}
	return nil
}

// AddFiles appends paths to the candidate list, skipping ones already
// present. It returns how many were added. No extension filter is applied.
func (o *Orchestrator) AddFiles(paths []string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	added := 0
	for _, p := range paths {
		key := cleanPath(p)
		if o.seen[key] {
			continue
		}
		o.seen[key] = true
		o.files = append(o.files, key)
		added++
	}
	return added
}

// TotalFileCount is the size of the candidate list.
func (o *Orchestrator) TotalFileCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.files)
}

// Files returns a copy of the candidate list in insertion order.
func (o *Orchestrator) Files() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.files...)
}

// Reset empties the candidate list.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files = nil
	o.seen = make(map[string]bool)
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Scan processes the candidate list. See ScanFiles.
func (o *Orchestrator) Scan(ctx context.Context, reprocess bool, onEvent ProgressFunc) (*ScanSummary, error) {
	return o.ScanFiles(ctx, o.Files(), reprocess, onEvent)
}

// ScanFiles processes files with the worker pool and returns once every
// resulting write has been applied. Per-file failures are reported as
// EventError and never stop the scan. A single EventDone with an empty path
// is emitted last, after the writes are durable.
//
// When ctx is cancelled no new files are dispatched; files already in
// progress finish and are written.
func (o *Orchestrator) ScanFiles(ctx context.Context, files []string, reprocess bool, onEvent ProgressFunc) (*ScanSummary, error) {
	if !o.scanning.TryLock() {
		return nil, ErrScanInProgress
	}
	defer o.scanning.Unlock()

	started := time.Now()
	summary := &ScanSummary{RunID: uuid.NewString(), Total: len(files)}
	progress := &serializedProgress{fn: onEvent, summary: summary}

	ser := NewWriteSerializer(o.store, o.opts.WriteQueueSize, o.log)
	ser.OnWriteError = func(path string, err error) {
		progress.emit(Progress{Path: path, Event: EventError, Err: &FileError{Path: path, Category: CategoryWriteFailure, Err: err}})
	}
	if err := ser.Start(); err != nil {
		return nil, fmt.Errorf("starting write serializer: %w", err)
	}

	o.log.Info("scan started",
		zap.String("run_id", summary.RunID),
		zap.Int("files", len(files)),
		zap.Int("workers", o.opts.NumWorkers),
		zap.Bool("reprocess", reprocess))

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(o.opts.NumWorkers)
	for i := 0; i < o.opts.NumWorkers; i++ {
		go func(id int) {
			defer wg.Done()
			for path := range jobs {
				o.processFile(ctx, id, path, reprocess, summary.RunID, ser, progress)
			}
		}(i)
	}

dispatch:
	for _, path := range files {
		select {
		case jobs <- path:
		case <-ctx.Done():
			o.log.Warn("scan cancelled, no further files dispatched", zap.Error(ctx.Err()))
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if o.opts.DetectBrackets {
		// bracket detection reads the store, so the photo writes must land first
		if err := ser.Flush(); err != nil {
			o.log.Error("flushing writes before bracket detection", zap.Error(err))
		} else {
			n, err := DetectBrackets(context.WithoutCancel(ctx), o.store, ser, o.opts.BracketMaxDuration, o.log)
			if err != nil {
				o.log.Error("bracket detection failed", zap.Error(err))
			}
			summary.GroupsFound = n
		}
	}

	if err := ser.Stop(); err != nil {
		o.log.Error("stopping write serializer", zap.Error(err))
	}
	summary.Duration = time.Since(started)

	run := &models.IngestRun{
		ID:          summary.RunID,
		StartedAt:   started.UnixMilli(),
		FinishedAt:  time.Now().UnixMilli(),
		Reprocess:   reprocess,
		TotalFiles:  summary.Total,
		GroupsFound: summary.GroupsFound,
	}
	progress.mu.Lock()
	run.Processed, run.Skipped, run.Failed = summary.Processed, summary.Skipped, summary.Failed
	progress.mu.Unlock()
	if err := o.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		o.log.Warn("could not record ingest run", zap.String("run_id", run.ID), zap.Error(err))
	}

	o.log.Info("scan finished",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
		zap.Int("groups", summary.GroupsFound),
		zap.Duration("took", summary.Duration))

	progress.emit(Progress{Event: EventDone})
	return summary, nil
}

func (o *Orchestrator) processFile(ctx context.Context, workerID int, path string, reprocess bool, runID string, ser *WriteSerializer, progress *serializedProgress) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("worker recovered from panic", zap.Int("worker", workerID), zap.String("path", path), zap.Any("panic", r))
			progress.emit(Progress{Path: path, Event: EventError, Err: &FileError{Path: path, Category: CategoryUnknown, Err: fmt.Errorf("panic: %v", r)}})
		}
	}()

	progress.emit(Progress{Path: path, Event: EventStart})

	if !reprocess {
		exists, err := o.store.Exists(ctx, path)
		if err != nil {
			o.log.Warn("existence check failed, processing anyway", zap.String("path", path), zap.Error(err))
		} else if exists {
			progress.emit(Progress{Path: path, Event: EventAlreadyProcessed})
			return
		}
	}

	meta, err := o.extractor.Extract(ctx, path)
	if err != nil {
		fe := CategorizeError(path, err)
		o.log.Warn("metadata extraction failed", zap.String("path", path), zap.String("category", string(fe.Category)), zap.Error(err))
		progress.emit(Progress{Path: path, Event: EventError, Err: fe})
		return
	}

	photo := buildPhoto(path, meta, runID)

	lat, lng, src, err := locations.Locate(meta.Tags, meta.CapturedAt, o.locator)
	switch {
	case err == nil:
		photo.Latitude, photo.Longitude = &lat, &lng
		o.log.Debug("location resolved", zap.String("path", path), zap.String("source", string(src)))
	case errors.Is(err, locations.ErrNoLocationData):
		o.log.Debug("no location available", zap.String("path", path))
	default:
		o.log.Warn("location lookup failed", zap.String("path", path), zap.Error(err))
	}

	if err := ser.EnqueueUpsert(photo); err != nil {
		progress.emit(Progress{Path: path, Event: EventError, Err: &FileError{Path: path, Category: CategoryWriteFailure, Err: err}})
		return
	}
	progress.emit(Progress{Path: path, Event: EventEnd})
}

func buildPhoto(path string, meta *media.Metadata, runID string) *models.Photo {
	return &models.Photo{
		Path:                 path,
		FileKind:             meta.Kind,
		CapturedAt:           meta.CapturedAt.UnixMilli(),
		Tags:                 meta.Tags,
		Thumbnail:            meta.Thumbnail,
		BracketMode:          meta.BracketMode,
		BracketShotCount:     meta.BracketShotCount,
		BracketExposureValue: meta.BracketExposureValue,
		IngestedAt:           time.Now().Unix(),
		RunID:                runID,
	}
}
