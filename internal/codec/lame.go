package codec

/*
#cgo LDFLAGS: -lmp3lame
#include <lame/lame.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Encoder wraps one libmp3lame instance. It is configured at construction,
// encodes a single finalized buffer and must be closed afterwards.
type Encoder struct {
	gfp      C.lame_t
	channels uint8
	used     bool
}

// NewEncoder creates an encoder for the given channel count: MONO for one
// channel, JOINT_STEREO for two.
func NewEncoder(cfg Config, channels uint8) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: unsupported channel count: %d", ErrEncode, channels)
	}

	gfp := C.lame_init()
	if gfp == nil {
		return nil, fmt.Errorf("%w: failed to initialize lame", ErrEncode)
	}

	mode := C.MPEG_mode(C.MONO)
	if channels == 2 {
		mode = C.MPEG_mode(C.JOINT_STEREO)
	}

	C.lame_set_in_samplerate(gfp, C.int(cfg.SampleRate))
	C.lame_set_num_channels(gfp, C.int(channels))
	C.lame_set_mode(gfp, mode)
	C.lame_set_quality(gfp, C.int(cfg.Quality))
	if cfg.BitrateKbps > 0 {
		C.lame_set_brate(gfp, C.int(cfg.BitrateKbps))
	}
	// Raw frames only, no Xing/LAME or ID3 tags
	C.lame_set_bWriteVbrTag(gfp, 0)
	C.lame_set_write_id3tag_automatic(gfp, 0)

	if rc := C.lame_init_params(gfp); rc < 0 {
		C.lame_close(gfp)
		return nil, fmt.Errorf("%w: failed to apply encoder parameters: code %d", ErrEncode, int(rc))
	}

	return &Encoder{gfp: gfp, channels: channels}, nil
}

// Channels returns the channel count the encoder was built for
func (e *Encoder) Channels() uint8 {
	return e.channels
}

// EncodeMono encodes and flushes a single channel.
func (e *Encoder) EncodeMono(samples []int16) ([]byte, error) {
	if err := e.begin(1); err != nil {
		return nil, err
	}
	return e.encode(samples, nil, len(samples))
}

// EncodeStereo encodes and flushes a channel pair. Lengths may differ by one
// sample; the longer channel is trimmed.
func (e *Encoder) EncodeStereo(left, right []int16) ([]byte, error) {
	if err := e.begin(2); err != nil {
		return nil, err
	}
	left, right, err := alignStereo(left, right)
	if err != nil {
		return nil, err
	}
	return e.encode(left, right, len(left))
}

func (e *Encoder) begin(channels uint8) error {
	if e.gfp == nil || e.used {
		return ErrFinalized
	}
	if e.channels != channels {
		return fmt.Errorf("%w: %d-channel encoder cannot take %d-channel input", ErrEncode, e.channels, channels)
	}
	e.used = true
	return nil
}

func (e *Encoder) encode(left, right []int16, n int) ([]byte, error) {
	buf := make([]byte, MaxEncodedSize(n)+flushReserve)

	written := 0
	if n > 0 {
		var r *C.short
		if right != nil {
			r = (*C.short)(unsafe.Pointer(&right[0]))
		}
		rc := C.lame_encode_buffer(e.gfp,
			(*C.short)(unsafe.Pointer(&left[0])),
			r,
			C.int(n),
			(*C.uchar)(unsafe.Pointer(&buf[0])),
			C.int(len(buf)),
		)
		if rc < 0 {
			return nil, fmt.Errorf("%w: lame_encode_buffer returned %d", ErrEncode, int(rc))
		}
		written = int(rc)
	}

	rc := C.lame_encode_flush(e.gfp,
		(*C.uchar)(unsafe.Pointer(&buf[written])),
		C.int(len(buf)-written),
	)
	if rc < 0 {
		return nil, fmt.Errorf("%w: lame_encode_flush returned %d", ErrEncode, int(rc))
	}
	written += int(rc)

	out := make([]byte, written)
	copy(out, buf[:written])
	return out, nil
}

// Close releases the codec state. It is safe to call more than once.
func (e *Encoder) Close() error {
	if e.gfp == nil {
		return nil
	}
	C.lame_close(e.gfp)
	e.gfp = nil
	return nil
}
