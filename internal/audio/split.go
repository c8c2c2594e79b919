package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Channels holds the demultiplexed sample sequences of one object.
// Right is nil for mono input.
type Channels struct {
	Left    []int16
	Right   []int16
	Skipped int
}

// Mono reports whether only the left sequence carries audio
func (c Channels) Mono() bool {
	return c.Right == nil
}

// maxPresize caps the per-channel capacity taken from a declared data size.
// The header is untrusted; longer input grows the slices as it arrives.
const maxPresize = 1 << 20

// Split drains src and demultiplexes its interleaved samples. Stereo samples
// alternate left and right; a skipped sample still consumes its slot so the
// channels stay aligned. Mono samples all go to Left.
func Split(src SampleReader, logger *slog.Logger) (Channels, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	spec := src.Spec()
	if spec.Channels != 1 && spec.Channels != 2 {
		return Channels{}, fmt.Errorf("%w: unsupported channel layout: %d channels", ErrContainerFormat, spec.Channels)
	}

	hint := 0
	if l, ok := src.(interface{ Len() int }); ok && l.Len() > 0 {
		hint = min(l.Len()/int(spec.Channels), maxPresize)
	}

	var out Channels
	out.Left = make([]int16, 0, hint+1)
	if spec.Channels == 2 {
		out.Right = make([]int16, 0, hint+1)
	}

	right := false
	for {
		sample, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrSkippedSample) {
			out.Skipped++
			logger.Warn("Skipping corrupt sample",
				slog.Int("position", len(out.Left)+len(out.Right)+out.Skipped-1),
				slog.String("error", err.Error()),
			)
			if spec.Channels == 2 {
				right = !right
			}
			continue
		}
		if err != nil {
			return Channels{}, err
		}

		if spec.Channels == 1 {
			out.Left = append(out.Left, sample)
			continue
		}
		if right {
			out.Right = append(out.Right, sample)
		} else {
			out.Left = append(out.Left, sample)
		}
		right = !right
	}

	logger.Debug("Split samples",
		slog.Int("left", len(out.Left)),
		slog.Int("right", len(out.Right)),
		slog.Int("skipped", out.Skipped),
	)

	return out, nil
}
