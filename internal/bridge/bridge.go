package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/petii/mp3-magic-machine/internal/metrics"
)

// ErrSourceRead marks a failure of the background chunk pull.
var ErrSourceRead = errors.New("source read failed")

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("bridge closed")

// ChunkSource is an asynchronous, chunked byte stream. Next returns io.EOF
// once the stream is exhausted.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Options configures a Bridge
type Options struct {
	QueueCapacity int // 0 keeps the hand-off queue unbounded
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Bridge exposes a ChunkSource as a blocking io.Reader. A background
// goroutine pulls chunks into the hand-off queue while the caller reads.
type Bridge struct {
	q       *queue
	current []byte

	group    *errgroup.Group
	cancel   context.CancelFunc
	stopWake func() bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	chunks  int
	bytes   int64
	closed  bool
}

// New starts pulling from src and returns the reading side.
func New(ctx context.Context, src ChunkSource, opts Options) *Bridge {
	ctx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	b := &Bridge{
		q:       newQueue(opts.QueueCapacity),
		group:   group,
		cancel:  cancel,
		logger:  logger,
		metrics: opts.Metrics,
	}
	b.stopWake = context.AfterFunc(groupCtx, b.q.wake)

	group.Go(func() error {
		return b.pump(groupCtx, src)
	})

	return b
}

// pump moves chunks from src into the queue in arrival order.
func (b *Bridge) pump(ctx context.Context, src ChunkSource) (err error) {
	defer func() {
		b.q.close(err)
	}()

	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			b.logger.Debug("Chunk source exhausted",
				slog.Int("chunks", b.chunks),
				slog.Int64("bytes", b.bytes),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSourceRead, err)
		}
		if len(chunk) == 0 {
			continue
		}

		if err := b.q.push(ctx, chunk); err != nil {
			return fmt.Errorf("%w: %w", ErrSourceRead, err)
		}

		b.chunks++
		b.bytes += int64(len(chunk))
		b.metrics.RecordChunk(len(chunk))
		b.metrics.SetQueueDepth(b.q.len())
	}
}

// Read blocks until data is available. It returns io.EOF at the end of the
// stream and an error wrapping ErrSourceRead if the pull failed.
func (b *Bridge) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(b.current) == 0 {
		chunk, err := b.q.pop()
		if err != nil {
			return 0, err
		}
		b.current = chunk
		b.metrics.SetQueueDepth(b.q.len())
	}

	n := copy(p, b.current)
	b.current = b.current[n:]
	return n, nil
}

// Wait blocks until the background pull has finished and returns its error.
// Call it only after the read loop is done. After Close, the errors Close
// itself provokes in the producer are not reported; a source failure is.
func (b *Bridge) Wait() error {
	err := b.group.Wait()
	b.stopWake()
	b.cancel()
	if b.closed && abandoned(err) {
		return nil
	}
	return err
}

// abandoned reports whether the producer stopped only because the reader went away
func abandoned(err error) bool {
	return errors.Is(err, errQueueClosed) || errors.Is(err, context.Canceled)
}

// Finish discards whatever the reader did not consume, then waits for the
// pull goroutine. A bounded queue would otherwise keep the producer blocked.
func (b *Bridge) Finish() error {
	b.current = nil
	discarded, err := io.Copy(io.Discard, b)
	if discarded > 0 {
		b.logger.Debug("Discarded unread trailing bytes", slog.Int64("bytes", discarded))
	}
	if waitErr := b.Wait(); waitErr != nil {
		return waitErr
	}
	return err
}

// Close abandons the stream, stopping the pull goroutine. Wait may still be
// called afterwards to collect its outcome.
func (b *Bridge) Close() {
	b.closed = true
	b.current = nil
	b.q.abort(ErrClosed)
	b.cancel()
}
