package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrEncode marks any codec construction, encode or flush failure.
	ErrEncode = errors.New("mp3 encode failed")

	// ErrFinalized is returned when an encoder is used after its single encode.
	ErrFinalized = fmt.Errorf("%w: encoder already finalized", ErrEncode)
)

// flushReserve is the worst case lame_encode_flush may emit on top of the
// encode output.
const flushReserve = 7200

// Config holds the settings fixed at encoder construction
type Config struct {
	SampleRate  uint32
	Quality     int // 0 best, 9 fastest
	BitrateKbps int // 0 keeps the codec default
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrEncode)
	}
	if c.Quality < 0 || c.Quality > 9 {
		return fmt.Errorf("%w: quality must be between 0 and 9, got %d", ErrEncode, c.Quality)
	}
	if c.BitrateKbps < 0 || c.BitrateKbps > 320 {
		return fmt.Errorf("%w: bitrate must be between 0 and 320 kbps, got %d", ErrEncode, c.BitrateKbps)
	}
	return nil
}

// MaxEncodedSize returns the worst-case encode output for n samples per
// channel, following LAME's 1.25*n + 7200 rule rounded up.
func MaxEncodedSize(n int) int {
	if n < 0 {
		n = 0
	}
	return (5*n+3)/4 + 7200
}

// EncodeMono encodes one channel with a dedicated encoder instance.
func EncodeMono(cfg Config, samples []int16) ([]byte, error) {
	enc, err := NewEncoder(cfg, 1)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeMono(samples)
}

// EncodeJointStereo encodes a channel pair in joint-stereo mode with a
// dedicated encoder instance.
func EncodeJointStereo(cfg Config, left, right []int16) ([]byte, error) {
	enc, err := NewEncoder(cfg, 2)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeStereo(left, right)
}

// alignStereo trims a one-sample length mismatch left by the splitter.
func alignStereo(left, right []int16) ([]int16, []int16, error) {
	diff := len(left) - len(right)
	if diff > 1 || diff < -1 {
		return nil, nil, fmt.Errorf("%w: channel lengths differ by %d samples", ErrEncode, diff)
	}
	n := min(len(left), len(right))
	return left[:n], right[:n], nil
}
