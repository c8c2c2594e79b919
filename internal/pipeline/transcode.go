package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/petii/mp3-magic-machine/internal/audio"
	"github.com/petii/mp3-magic-machine/internal/codec"
	"github.com/petii/mp3-magic-machine/internal/staging"
)

// output is one encoded buffer waiting to be staged
type output struct {
	role staging.Role
	data []byte
}

// Transcode decodes one WAV stream, encodes its channels and stages the MP3
// outputs under dir. Nothing is staged unless every encode succeeds.
func (o *Orchestrator) Transcode(ctx context.Context, r io.Reader, base, dir string) ([]staging.File, error) {
	return o.transcode(ctx, o.logger, r, base, dir, func(Stage) {})
}

func (o *Orchestrator) transcode(ctx context.Context, logger *slog.Logger, r io.Reader, base, dir string, enter func(Stage)) ([]staging.File, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: empty output base name", staging.ErrIO)
	}

	enter(StageDecoding)
	dec, err := audio.NewDecoder(r, audio.DecoderOptions{Policy: o.opts.Policy})
	if err != nil {
		return nil, fmt.Errorf("failed to parse WAV header: %w", err)
	}
	spec := dec.Spec()
	logger.Info("Parsed WAV header",
		slog.Uint64("sample_rate", uint64(spec.SampleRate)),
		slog.Int("channels", int(spec.Channels)),
		slog.Int("bits_per_sample", int(spec.BitsPerSample)),
		slog.String("policy", o.opts.Policy.String()),
	)

	channels, err := audio.Split(dec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	o.metrics.RecordSamples(len(channels.Left)+len(channels.Right), channels.Skipped)
	if channels.Skipped > 0 {
		logger.Warn("Skipped corrupt samples", slog.Int("skipped", channels.Skipped))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enter(StageEncoding)
	outputs, err := o.encode(ctx, logger, spec, channels)
	if err != nil {
		return nil, err
	}

	writer := staging.NewWriter(dir)
	files := make([]staging.File, 0, len(outputs))
	for _, out := range outputs {
		f, err := writer.Write(staging.OutputName(base, out.role), out.role, out.data)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	enter(StageStaged)

	logger.Info("Staged outputs",
		slog.Int("files", len(files)),
		slog.String("dir", dir),
		slog.Duration("audio", spec.Duration(len(channels.Left)+len(channels.Right))),
	)

	return files, nil
}

// encode runs one encoder instance per logical output: left, right and joint
// for stereo, a single pass for mono.
func (o *Orchestrator) encode(ctx context.Context, logger *slog.Logger, spec audio.Spec, ch audio.Channels) ([]output, error) {
	cfg := codec.Config{
		SampleRate:  spec.SampleRate,
		Quality:     o.opts.Quality,
		BitrateKbps: o.opts.BitrateKbps,
	}

	type job struct {
		role staging.Role
		run  func() ([]byte, error)
	}

	var jobs []job
	if ch.Mono() {
		jobs = []job{
			{staging.RoleMono, func() ([]byte, error) { return codec.EncodeMono(cfg, ch.Left) }},
		}
	} else {
		jobs = []job{
			{staging.RoleLeft, func() ([]byte, error) { return codec.EncodeMono(cfg, ch.Left) }},
			{staging.RoleRight, func() ([]byte, error) { return codec.EncodeMono(cfg, ch.Right) }},
			{staging.RoleJoint, func() ([]byte, error) { return codec.EncodeJointStereo(cfg, ch.Left, ch.Right) }},
		}
	}

	outputs := make([]output, 0, len(jobs))
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		data, err := j.run()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s output: %w", j.role, err)
		}
		elapsed := time.Since(start)

		o.metrics.RecordEncode(string(j.role), elapsed.Seconds(), len(data))
		logger.Debug("Encoded output",
			slog.String("role", string(j.role)),
			slog.Int("bytes", len(data)),
			slog.Duration("took", elapsed),
		)
		outputs = append(outputs, output{role: j.role, data: data})
	}

	return outputs, nil
}
