package saver

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/clock/system"
	"github.com/JakeFAU/notesaver/internal/extract"
	"github.com/JakeFAU/notesaver/internal/id/uuid"
	"github.com/JakeFAU/notesaver/internal/metrics"
	"github.com/JakeFAU/notesaver/internal/pool"
	"github.com/JakeFAU/notesaver/internal/syncx"
	"github.com/JakeFAU/notesaver/internal/urlutil"
)

// DefaultWorkers is the pool size used when Options.Workers is zero.
const DefaultWorkers = 10

// Artifact kinds used for metrics labels and log fields.
const (
	KindText  = "text"
	KindCover = "cover"
	KindVideo = "video"
)

// Options is the configuration surface of a batch.
type Options struct {
	Workers            int
	SkipTextContent    bool
	KeepOnlyFirstImage bool
	TargetDirectory    string
}

// Dependencies bundles the collaborators used by the Orchestrator. Fetcher
// and Store are required; everything else has a default or is optional.
type Dependencies struct {
	Fetcher   Fetcher
	Store     Store
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
	Logger    *zap.Logger

	// OnProgress is invoked after every task with the current success count.
	// It runs on a pool worker; calls from different tasks may interleave.
	OnProgress func(success, total int)
	// OnCounts is invoked after every task with the live success and fail
	// counts. Same threading rules as OnProgress.
	OnCounts func(success, fail, total int)
	// OnDone is invoked once per batch after the pool drains.
	OnDone func(success, fail, total int)
}

// Summary is the final aggregate of a batch.
type Summary struct {
	BatchID         string        `json:"batch_id"`
	TargetDirectory string        `json:"target_directory"`
	Success         int           `json:"success"`
	Fail            int           `json:"fail"`
	Total           int           `json:"total"`
	StartedAt       time.Time     `json:"started_at"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// Orchestrator turns input text into one pool task per share URL.
type Orchestrator struct {
	opts      Options
	fetcher   Fetcher
	store     Store
	publisher Publisher
	ids       IDGenerator
	clock     Clock
	logger    *zap.Logger

	onProgress func(success, total int)
	onCounts   func(success, fail, total int)
	onDone     func(success, fail, total int)
}

// batch holds the state shared by the tasks of one Run.
type batch struct {
	id       string
	counters *syncx.Counters
	cover    *syncx.Gate
}

// New validates the options and wires defaults for optional dependencies.
func New(opts Options, deps Dependencies) (*Orchestrator, error) {
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("worker count must be > 0, got %d: %w", opts.Workers, pool.ErrInvalidArgument)
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:       opts,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		publisher:  deps.Publisher,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     deps.Logger,
		onProgress: deps.OnProgress,
		onCounts:   deps.OnCounts,
		onDone:     deps.OnDone,
	}, nil
}

// Run processes every share URL found in input and blocks until all of them
// have concluded. Configuration errors are returned before any work starts;
// per-URL failures are only reflected in the Summary counts.
func (o *Orchestrator) Run(ctx context.Context, input string) (Summary, error) {
	if strings.TrimSpace(input) == "" {
		return Summary{}, ErrEmptyInput
	}
	if strings.TrimSpace(o.opts.TargetDirectory) == "" {
		return Summary{}, ErrNoTargetDirectory
	}
	urls := extract.SourceURLs(input)
	if len(urls) == 0 {
		return Summary{}, ErrNoSourceURLs
	}

	batchID, err := o.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate batch id: %w", err)
	}
	started := o.clock.Now()
	b := &batch{
		id:       batchID,
		counters: syncx.NewCounters(len(urls)),
		cover:    &syncx.Gate{},
	}
	logger := o.logger.With(zap.String("batch_id", batchID))

	p, err := pool.New(o.opts.Workers, logger)
	if err != nil {
		return Summary{}, fmt.Errorf("create pool: %w", err)
	}
	defer p.Shutdown()

	logger.Info("batch started",
		zap.Int("urls", len(urls)),
		zap.Int("workers", o.opts.Workers),
		zap.String("target_directory", o.opts.TargetDirectory),
	)
	for _, u := range urls {
		url := u
		if err := p.QueueTask(func() { o.runTask(ctx, b, url, logger) }); err != nil {
			return Summary{}, fmt.Errorf("queue %s: %w", url, err)
		}
	}
	p.Wait()

	snap := b.counters.Snapshot()
	summary := Summary{
		BatchID:         batchID,
		TargetDirectory: o.opts.TargetDirectory,
		Success:         snap.Success,
		Fail:            snap.Fail,
		Total:           snap.Total,
		StartedAt:       started,
		Elapsed:         o.clock.Now().Sub(started),
	}
	metrics.ObserveBatch()
	logger.Info("batch finished",
		zap.Int("success", summary.Success),
		zap.Int("fail", summary.Fail),
		zap.Int("total", summary.Total),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if o.onDone != nil {
		o.onDone(summary.Success, summary.Fail, summary.Total)
	}
	o.publish(ctx, summary, logger)
	return summary, nil
}

func (o *Orchestrator) runTask(ctx context.Context, b *batch, url string, logger *zap.Logger) {
	if err := o.process(ctx, b, url, logger); err != nil {
		b.counters.Fail()
		metrics.ObserveTask("failure")
		logger.Warn("save failed", zap.String("url", canonicalURL(url)), zap.Error(err))
	} else {
		b.counters.Succeed()
		metrics.ObserveTask("success")
		logger.Debug("save succeeded", zap.String("url", canonicalURL(url)))
	}
	if o.onProgress != nil {
		o.onProgress(b.counters.Success(), b.counters.Total())
	}
	if o.onCounts != nil {
		snap := b.counters.Snapshot()
		o.onCounts(snap.Success, snap.Fail, snap.Total)
	}
}

// canonicalURL sorts the query so log lines for the same share link match.
func canonicalURL(raw string) string {
	sorted, err := urlutil.SortQueryInURL(raw, false)
	if err != nil {
		return raw
	}
	return sorted
}

// process runs the body of one task. A panic anywhere below is turned into
// an error so the task is still counted.
func (o *Orchestrator) process(ctx context.Context, b *batch, url string, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	body, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	blob, ok := extract.EmbeddedBlob(body)
	if !ok {
		return ErrNoEmbeddedData
	}
	items, err := extract.ParseItems(blob)
	if err != nil {
		return fmt.Errorf("parse page data: %w", err)
	}
	for _, item := range items {
		if err := o.saveItem(ctx, b, item, logger); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) saveItem(ctx context.Context, b *batch, item extract.Item, logger *zap.Logger) error {
	if !o.opts.SkipTextContent {
		if err := o.write(ctx, KindText, TextFileName(item.Title), []byte(item.TextContent), logger); err != nil {
			return err
		}
	}
	if o.opts.KeepOnlyFirstImage && b.cover.TryClaim() {
		if err := o.download(ctx, KindCover, item.CoverURL, CoverFileName(item.Title), logger); err != nil {
			return err
		}
	}
	if video, ok := item.FirstVideo(); ok {
		if err := o.download(ctx, KindVideo, video.URL, VideoFileName(item.Title), logger); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) download(ctx context.Context, kind, url, name string, logger *zap.Logger) error {
	data, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", kind, err)
	}
	return o.write(ctx, kind, name, data, logger)
}

func (o *Orchestrator) write(ctx context.Context, kind, name string, data []byte, logger *zap.Logger) error {
	uri, err := o.store.Create(ctx, o.opts.TargetDirectory, name, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	metrics.ObserveArtifact(kind)
	logger.Debug("artifact written",
		zap.String("kind", kind),
		zap.String("uri", uri),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, summary Summary, logger *zap.Logger) {
	if o.publisher == nil {
		return
	}
	id, err := o.publisher.Publish(ctx, summary)
	if err != nil {
		logger.Error("failed to publish batch summary", zap.Error(err))
		return
	}
	logger.Debug("batch summary published", zap.String("message_id", id))
}
