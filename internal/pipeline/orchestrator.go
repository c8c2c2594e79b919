package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/petii/mp3-magic-machine/internal/archive"
	"github.com/petii/mp3-magic-machine/internal/audio"
	"github.com/petii/mp3-magic-machine/internal/bridge"
	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/event"
	"github.com/petii/mp3-magic-machine/internal/logging"
	"github.com/petii/mp3-magic-machine/internal/metrics"
	"github.com/petii/mp3-magic-machine/internal/staging"
	"github.com/petii/mp3-magic-machine/internal/store"
)

// Options controls how records are transcoded and delivered
type Options struct {
	Mode          string // config.DeliveryArchive or config.DeliveryPerObject
	Bucket        string // delivery bucket; per-object mode falls back to the source bucket
	ArchivePrefix string
	StagingDir    string
	Cleanup       bool
	ChunkSize     int
	QueueCapacity int
	Policy        audio.DecodePolicy
	Quality       int
	BitrateKbps   int
}

// OptionsFromConfig extracts pipeline options from the service configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mode:          cfg.Delivery.Mode,
		Bucket:        cfg.Delivery.Bucket,
		ArchivePrefix: cfg.Delivery.ArchivePrefix,
		StagingDir:    cfg.Staging.Dir,
		Cleanup:       cfg.Staging.Cleanup,
		ChunkSize:     cfg.Bridge.ChunkSize,
		QueueCapacity: cfg.Bridge.QueueCapacity,
		Policy:        audio.ParsePolicy(cfg.Decode.Policy),
		Quality:       cfg.Encoder.Quality,
		BitrateKbps:   cfg.Encoder.BitrateKbps,
	}
}

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Store   store.Store
	Options Options
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now and NewID default to the wall clock and random UUIDs
	Now   func() time.Time
	NewID func() string
}

// Result summarizes a successful invocation
type Result struct {
	InvocationID string
	Records      int
	Files        []staging.File
	Delivered    []string // object keys written to the store
	ArchiveKey   string
	Duration     time.Duration
}

// Orchestrator drives records through fetch, transcode, staging and delivery
type Orchestrator struct {
	store   store.Store
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// stagedRecord pairs a record with the files produced for it
type stagedRecord struct {
	record event.Record
	files  []staging.File
}

// New creates an orchestrator. A nil Store is allowed for local transcoding
// but Handle will refuse to run.
func New(deps Deps) (*Orchestrator, error) {
	opts := deps.Options
	switch opts.Mode {
	case "":
		opts.Mode = config.DeliveryArchive
	case config.DeliveryArchive, config.DeliveryPerObject:
	default:
		return nil, fmt.Errorf("unknown delivery mode: %s", opts.Mode)
	}
	if opts.Mode == config.DeliveryArchive && opts.Bucket == "" {
		return nil, fmt.Errorf("archive delivery requires a bucket")
	}
	if opts.StagingDir == "" {
		opts.StagingDir = filepath.Join(os.TempDir(), "mp3-magic-machine")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = bridge.DefaultChunkSize
	}

	o := &Orchestrator{
		store:   deps.Store,
		opts:    opts,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		now:     deps.Now,
		newID:   deps.NewID,
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	return o, nil
}

// Handle processes the records of one invocation in order. The first failing
// record aborts the invocation with a *RecordError; nothing is delivered then.
// An empty record list succeeds without touching the store.
func (o *Orchestrator) Handle(ctx context.Context, records []event.Record) (*Result, error) {
	start := o.now()

	if len(records) == 0 {
		o.logger.Info("No records to process")
		o.metrics.RecordInvocation("noop", 0)
		return &Result{}, nil
	}
	if o.store == nil {
		return nil, fmt.Errorf("no object store configured")
	}

	id := o.newID()
	root := filepath.Join(o.opts.StagingDir, id)
	logger := o.logger.With(slog.String("invocation_id", id))
	result := &Result{InvocationID: id, Records: len(records)}

	logger.Info("Handling records",
		slog.Int("records", len(records)),
		slog.String("mode", o.opts.Mode),
	)

	if o.opts.Cleanup {
		defer func() {
			if err := staging.NewWriter(root).Remove(); err != nil {
				logger.Warn("Failed to clean up staging directory", slog.String("error", err.Error()))
			}
		}()
	}

	err := o.run(ctx, logger, records, root, result)
	result.Duration = o.now().Sub(start)

	if err != nil {
		o.transition(logger, StageFailed)
		o.metrics.RecordInvocation("failure", result.Duration.Seconds())
		logger.Error("Invocation failed", slog.String("error", err.Error()))
		return result, err
	}

	o.transition(logger, StageDone)
	o.metrics.RecordInvocation("success", result.Duration.Seconds())
	logger.Info("Invocation complete",
		slog.Int("files", len(result.Files)),
		slog.Int("delivered", len(result.Delivered)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, records []event.Record, root string, result *Result) error {
	staged := make([]stagedRecord, 0, len(records))
	for i, rec := range records {
		files, err := o.processRecord(ctx, logger, rec, filepath.Join(root, strconv.Itoa(i)))
		if err != nil {
			return err
		}
		staged = append(staged, stagedRecord{record: rec, files: files})
		result.Files = append(result.Files, files...)
		o.metrics.RecordObjectProcessed()
	}

	if o.opts.Mode == config.DeliveryPerObject {
		return o.deliverObjects(ctx, logger, staged, result)
	}
	return o.deliverArchive(ctx, logger, records, root, result)
}

// processRecord fetches one object through the bridge and transcodes it
func (o *Orchestrator) processRecord(ctx context.Context, logger *slog.Logger, rec event.Record, dir string) ([]staging.File, error) {
	logger = logger.With(slog.String("bucket", rec.Bucket), slog.String("key", rec.Key))
	stage := StageIdle
	enter := func(s Stage) {
		stage = s
		o.transition(logger, s)
	}

	enter(StageFetching)
	body, err := o.store.Get(ctx, rec.Bucket, rec.Key)
	if err != nil {
		return nil, o.recordError(logger, stage, rec, err)
	}

	br := bridge.New(ctx, bridge.ReaderSource(body, o.opts.ChunkSize), bridge.Options{
		QueueCapacity: o.opts.QueueCapacity,
		Logger:        logger,
		Metrics:       o.metrics,
	})

	files, err := o.transcode(ctx, logger, br, staging.BaseName(rec.Key), dir, enter)
	if err != nil {
		// The producer stops at its next chunk boundary; the body is released
		// only once nothing reads from it.
		br.Close()
		if waitErr := br.Wait(); waitErr != nil && !errors.Is(err, bridge.ErrSourceRead) {
			// The decoder saw the end of a body that failed to deliver the rest
			err = errors.Join(err, waitErr)
		}
		body.Close()
		return nil, o.recordError(logger, stage, rec, err)
	}

	finishErr := br.Finish()
	body.Close()
	if finishErr != nil {
		return nil, o.recordError(logger, stage, rec, finishErr)
	}

	return files, nil
}

func (o *Orchestrator) deliverArchive(ctx context.Context, logger *slog.Logger, records []event.Record, root string, result *Result) error {
	o.transition(logger, StageAssembling)

	// Archives are dated by the last record, like the notifications they bundle
	when := event.LastEventTime(records, o.now().UTC())
	dest := filepath.Join(root, archive.FileName(when))
	if err := archive.Assemble(result.Files, dest); err != nil {
		return o.invocationError(logger, StageAssembling, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return o.invocationError(logger, StageAssembling, fmt.Errorf("%w: %w", archive.ErrIO, err))
	}

	key := archive.Key(o.opts.ArchivePrefix, when)
	o.transition(logger, StageDelivering)
	if err := store.PutFile(ctx, o.store, o.opts.Bucket, key, dest, store.ContentTypeZip); err != nil {
		return o.invocationError(logger, StageDelivering, &deliveryFailure{bucket: o.opts.Bucket, key: key, err: err})
	}

	o.metrics.RecordArchiveDelivered(info.Size())

	result.ArchiveKey = key
	result.Delivered = append(result.Delivered, key)
	logger.Info("Delivered archive",
		slog.String("bucket", o.opts.Bucket),
		slog.String("key", key),
		slog.Int("entries", len(result.Files)),
	)
	return nil
}

func (o *Orchestrator) deliverObjects(ctx context.Context, logger *slog.Logger, staged []stagedRecord, result *Result) error {
	o.transition(logger, StageDelivering)

	for _, s := range staged {
		bucket := o.opts.Bucket
		if bucket == "" {
			bucket = s.record.Bucket
		}
		for _, f := range s.files {
			key := ObjectKey(s.record.Key, f.Name)
			if err := store.PutFile(ctx, o.store, bucket, key, f.Path, store.ContentTypeMP3); err != nil {
				return o.recordError(logger, StageDelivering, s.record, &deliveryFailure{bucket: bucket, key: key, err: err})
			}
			o.metrics.RecordObjectDelivered()
			result.Delivered = append(result.Delivered, key)
			logger.Info("Delivered object",
				slog.String("bucket", bucket),
				slog.String("key", key),
			)
		}
	}
	return nil
}

// ObjectKey names a per-object delivery: <source-key>-<file-name>
func ObjectKey(sourceKey, fileName string) string {
	return sourceKey + "-" + fileName
}

func (o *Orchestrator) transition(logger *slog.Logger, stage Stage) {
	o.metrics.RecordTransition(string(stage))
	logger.Debug("Stage transition", slog.String("stage", string(stage)))
}

func (o *Orchestrator) recordError(logger *slog.Logger, stage Stage, rec event.Record, err error) error {
	kind := classify(stage, err)
	o.metrics.RecordObjectFailure(string(stage))
	logger.Error("Record failed",
		slog.String("bucket", rec.Bucket),
		slog.String("key", rec.Key),
		slog.String("stage", string(stage)),
		slog.String("kind", kind.Error()),
		slog.String("error", err.Error()),
	)
	return &RecordError{Kind: kind, Stage: stage, Bucket: rec.Bucket, Key: rec.Key, Err: err}
}

func (o *Orchestrator) invocationError(logger *slog.Logger, stage Stage, err error) error {
	kind := classify(stage, err)
	o.metrics.RecordObjectFailure(string(stage))
	logger.Error("Delivery step failed",
		slog.String("stage", string(stage)),
		slog.String("kind", kind.Error()),
		slog.String("error", err.Error()),
	)
	return &RecordError{Kind: kind, Stage: stage, Bucket: o.opts.Bucket, Err: err}
}

// deliveryFailure tags a store write failure so it is never mistaken for a
// fetch failure, even when the store reports ErrNotFound.
type deliveryFailure struct {
	bucket string
	key    string
	err    error
}

func (d *deliveryFailure) Error() string {
	return fmt.Sprintf("failed to deliver %s/%s: %v", d.bucket, d.key, d.err)
}

func (d *deliveryFailure) Unwrap() error {
	return d.err
}
