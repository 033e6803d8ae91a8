package mirror

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	tempPrefix = "."
	tempSuffix = ".partial"
)

// RemoteStore is the object store the mirror pulls from.
type RemoteStore interface {
	// List returns one page of keys under prefix, starting after marker.
	// An empty next marker means the listing is exhausted.
	List(ctx context.Context, prefix, marker string) (keys []string, next string, err error)
	// Download streams the full object to w.
	Download(ctx context.Context, key string, w io.Writer) error
}

// StatusRecorder receives the outcome of every file refresh.
type StatusRecorder interface {
	RecordSuccess(key, localPath string, at time.Time)
	// RecordFailure returns the number of consecutive failures for key.
	RecordFailure(key string, err error, at time.Time) int
}

// Target is one device and the sensor-type directories tracked for it.
type Target struct {
	Device      string
	SensorTypes []string
}

// RetryPolicy bounds the per-file retry loop with exponential backoff.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Options configures an Engine.
type Options struct {
	CacheRoot        string
	Targets          []Target
	Retry            RetryPolicy
	FailureThreshold int
	Status           StatusRecorder
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Installed int           `json:"installed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

// Engine keeps the local cache in step with the remote store. It is the only
// writer of the cache tree; files are downloaded beside their destination and
// renamed over it, so readers see either the old or the new file, never a
// partial one.
type Engine struct {
	store RemoteStore
	opts  Options
}

// NewEngine creates an Engine.
func NewEngine(store RemoteStore, opts Options) *Engine {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Retry.InitialInterval <= 0 {
		opts.Retry.InitialInterval = 500 * time.Millisecond
	}
	if opts.Retry.MaxRetries < 0 {
		opts.Retry.MaxRetries = 0
	}
	return &Engine{store: store, opts: opts}
}

// RunCycle reconciles every tracked directory once. Failures are contained to
// the file or directory they occur in. A cancelled ctx stops the cycle
// between files; a file in flight is discarded, never half-installed.
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.NewString(), Started: time.Now().UTC()}
	logger := log.With().Str("cycle", report.ID).Logger()
	ctx = logger.WithContext(ctx)

	logger.Info().Int("targets", len(e.opts.Targets)).Msg("mirror: refresh cycle started")

	for _, target := range e.opts.Targets {
		for _, sensorType := range target.SensorTypes {
			if ctx.Err() != nil {
				logger.Warn().Err(ctx.Err()).Msg("mirror: refresh cycle cancelled")
				report.Duration = time.Since(report.Started)
				return report
			}

			res, err := e.SyncDirectory(ctx, target.Device, sensorType)
			report.Installed += res.Installed
			report.Skipped += res.Skipped
			report.Failed += res.Failed
			if err != nil {
				report.Failed++
			}
		}
	}

	report.Duration = time.Since(report.Started)
	logger.Info().
		Int("installed", report.Installed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("mirror: refresh cycle completed")
	return report
}

// DirectoryResult counts the files handled for one directory.
type DirectoryResult struct {
	Installed int
	Skipped   int
	Failed    int
}

// SyncDirectory lists "<device>/<sensorType>/" to exhaustion and refreshes
// every eligible object in it. A listing failure aborts only this directory.
func (e *Engine) SyncDirectory(ctx context.Context, device, sensorType string) (DirectoryResult, error) {
	var res DirectoryResult
	logger := ctxLogger(ctx)
	prefix := device + "/" + sensorType + "/"

	keys, err := e.listAll(ctx, prefix)
	if err != nil {
		e.recordFailure(logger, prefix, err)
		return res, err
	}
	// A successful listing clears earlier listing failures for the directory.
	if e.opts.Status != nil {
		e.opts.Status.RecordSuccess(prefix, filepath.Join(e.opts.CacheRoot, device, sensorType), time.Now().UTC())
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		entry, ok := Resolve(e.opts.CacheRoot, key)
		if !ok || entry.Device != device || entry.SensorType != sensorType {
			logger.Debug().Str("key", key).Msg("mirror: skipping ineligible key")
			res.Skipped++
			continue
		}

		if err := e.syncFile(ctx, entry); err != nil {
			e.recordFailure(logger, key, err)
			res.Failed++
			continue
		}

		if e.opts.Status != nil {
			e.opts.Status.RecordSuccess(key, entry.LocalPath, time.Now().UTC())
		}
		logger.Debug().Str("key", key).Str("path", entry.LocalPath).Msg("mirror: installed")
		res.Installed++
	}

	return res, nil
}

func (e *Engine) listAll(ctx context.Context, prefix string) ([]string, error) {
	var (
		all    []string
		marker string
	)
	for {
		keys, next, err := e.store.List(ctx, prefix, marker)
		if err != nil {
			return nil, &RemoteError{Op: "list", Key: prefix, Err: err}
		}
		all = append(all, keys...)
		if next == "" {
			return all, nil
		}
		marker = next
	}
}

// syncFile installs one entry, retrying with exponential backoff.
func (e *Engine) syncFile(ctx context.Context, entry Entry) error {
	policy := e.opts.Retry
	for attempt := 0; ; attempt++ {
		err := e.install(ctx, entry)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= policy.MaxRetries {
			return err
		}

		delay := policy.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if policy.MaxInterval > 0 && delay > policy.MaxInterval {
			delay = policy.MaxInterval
		}
		ctxLogger(ctx).Debug().Err(err).Str("key", entry.Key).Int("attempt", attempt+1).
			Dur("backoff", delay).Msg("mirror: retrying file")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// install downloads to a hidden temp file in the destination directory and
// renames it over the destination. rename(2) replaces atomically on the same
// filesystem, so there is no window in which the path is missing.
func (e *Engine) install(ctx context.Context, entry Entry) (err error) {
	dir := filepath.Dir(entry.LocalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &CacheWriteError{Path: dir, Err: err}
	}

	tmp := filepath.Join(dir, tempPrefix+entry.FileName+"."+uuid.NewString()+tempSuffix)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &CacheWriteError{Path: tmp, Err: err}
	}

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = os.Remove(tmp)
	}()

	if err := e.store.Download(ctx, entry.Key, f); err != nil {
		return &RemoteError{Op: "download", Key: entry.Key, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &CacheWriteError{Path: tmp, Err: err}
	}
	closed = true
	if err := f.Close(); err != nil {
		return &CacheWriteError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, entry.LocalPath); err != nil {
		return &CacheWriteError{Path: entry.LocalPath, Err: err}
	}
	return nil
}

func (e *Engine) recordFailure(logger *zerolog.Logger, key string, err error) {
	consecutive := 1
	if e.opts.Status != nil {
		consecutive = e.opts.Status.RecordFailure(key, err, time.Now().UTC())
	}

	ev := logger.Warn()
	if consecutive >= e.opts.FailureThreshold {
		ev = logger.Error().Bool("persistent", true)
	}

	var remoteErr *RemoteError
	kind := "cache"
	if errors.As(err, &remoteErr) {
		kind = "remote"
	}
	ev.Err(err).Str("key", key).Str("kind", kind).Int("consecutive", consecutive).
		Msg("mirror: refresh failed")
}

// CleanupTemp removes temp files left behind by an interrupted install.
func CleanupTemp(cacheRoot string) (int, error) {
	removed := 0
	err := filepath.WalkDir(cacheRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, tempSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
