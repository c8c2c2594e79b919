package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrContainerFormat is returned for a malformed or unsupported WAV header.
	ErrContainerFormat = errors.New("invalid WAV container")

	// ErrSkippedSample is returned by Next for a corrupt sample under the lenient policy.
	ErrSkippedSample = errors.New("corrupt sample skipped")
)

const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	// unboundedData is the data size streaming writers emit when the length is unknown.
	unboundedData = 0xFFFFFFFF
)

// DecodePolicy selects how corrupt sample frames are treated.
type DecodePolicy int

const (
	// PolicyLenient skips corrupt samples and keeps decoding.
	PolicyLenient DecodePolicy = iota
	// PolicyStrict fails the object on the first corrupt sample.
	PolicyStrict
)

// ParsePolicy maps a config value to a DecodePolicy. Unknown values are lenient.
func ParsePolicy(s string) DecodePolicy {
	if strings.EqualFold(s, "strict") {
		return PolicyStrict
	}
	return PolicyLenient
}

func (p DecodePolicy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "lenient"
}

// Spec describes the PCM payload of a WAV container
type Spec struct {
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint16
}

// Duration returns the play time of n interleaved samples.
func (s Spec) Duration(n int) time.Duration {
	if s.SampleRate == 0 || s.Channels == 0 {
		return 0
	}
	frames := int64(n) / int64(s.Channels)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

func (s Spec) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d bit", s.SampleRate, s.Channels, s.BitsPerSample)
}

// WAVHeader represents the canonical 44-byte header of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

type riffHeader struct {
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// fmtExtension follows fmtChunk when AudioFormat is WAVE_FORMAT_EXTENSIBLE
type fmtExtension struct {
	CbSize             uint16
	ValidBitsPerSample uint16
	ChannelMask        uint32
	SubFormat          [16]byte
}

// DecoderOptions configures a Decoder
type DecoderOptions struct {
	Policy DecodePolicy
}

// SampleReader yields interleaved signed 16-bit samples.
type SampleReader interface {
	Spec() Spec
	Next() (int16, error)
}

// Decoder reads a WAV container from a byte stream and iterates its samples
type Decoder struct {
	r         *bufio.Reader
	spec      Spec
	policy    DecodePolicy
	dataSize  int64 // -1 when the data chunk declares no length
	remaining int64
	buf       [2]byte
	err       error
}

// NewDecoder parses the container header from r. The returned decoder is
// positioned at the first sample of the data chunk.
func NewDecoder(r io.Reader, opts DecoderOptions) (*Decoder, error) {
	d := &Decoder{
		r:      bufio.NewReader(r),
		policy: opts.Policy,
	}
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) readHeader() error {
	var riff riffHeader
	if err := d.read("RIFF header", &riff); err != nil {
		return err
	}
	if string(riff.ChunkID[:]) != "RIFF" {
		return fmt.Errorf("%w: missing RIFF header", ErrContainerFormat)
	}
	if string(riff.Format[:]) != "WAVE" {
		return fmt.Errorf("%w: missing WAVE format", ErrContainerFormat)
	}

	var format *fmtChunk
	for {
		var ch chunkHeader
		if err := d.read("chunk header", &ch); err != nil {
			if !errors.Is(err, ErrContainerFormat) {
				return err
			}
			if format == nil {
				return fmt.Errorf("%w: missing fmt chunk", ErrContainerFormat)
			}
			return fmt.Errorf("%w: missing data chunk", ErrContainerFormat)
		}

		switch string(ch.ID[:]) {
		case "fmt ":
			f, err := d.readFormat(ch.Size)
			if err != nil {
				return err
			}
			format = f

		case "data":
			if format == nil {
				return fmt.Errorf("%w: data chunk precedes fmt chunk", ErrContainerFormat)
			}
			d.spec = Spec{
				SampleRate:    format.SampleRate,
				Channels:      uint8(format.NumChannels),
				BitsPerSample: format.BitsPerSample,
			}
			if ch.Size == unboundedData {
				d.dataSize = -1
			} else {
				d.dataSize = int64(ch.Size)
			}
			d.remaining = d.dataSize
			return nil

		default:
			// LIST, fact, cue and friends carry nothing we need
			if err := d.skip(string(ch.ID[:])+" chunk", padded(ch.Size)); err != nil {
				return err
			}
		}
	}
}

func (d *Decoder) readFormat(size uint32) (*fmtChunk, error) {
	if size < 16 {
		return nil, fmt.Errorf("%w: fmt chunk too short: %d bytes", ErrContainerFormat, size)
	}

	var f fmtChunk
	if err := d.read("fmt chunk", &f); err != nil {
		return nil, err
	}
	consumed := int64(16)

	audioFormat := f.AudioFormat
	if audioFormat == formatExtensible {
		if size < 40 {
			return nil, fmt.Errorf("%w: extensible fmt chunk too short: %d bytes", ErrContainerFormat, size)
		}
		var ext fmtExtension
		if err := d.read("fmt extension", &ext); err != nil {
			return nil, err
		}
		consumed += 24
		audioFormat = binary.LittleEndian.Uint16(ext.SubFormat[:2])
	}

	if err := d.skip("fmt chunk", padded(size)-consumed); err != nil {
		return nil, err
	}

	if audioFormat != formatPCM {
		return nil, fmt.Errorf("%w: unsupported audio format: %d (only PCM is supported)", ErrContainerFormat, audioFormat)
	}
	if f.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: unsupported bit depth: %d (only 16-bit is supported)", ErrContainerFormat, f.BitsPerSample)
	}
	if f.NumChannels != 1 && f.NumChannels != 2 {
		return nil, fmt.Errorf("%w: unsupported channel count: %d (only mono and stereo are supported)", ErrContainerFormat, f.NumChannels)
	}
	if f.SampleRate == 0 {
		return nil, fmt.Errorf("%w: invalid sample rate: 0", ErrContainerFormat)
	}

	return &f, nil
}

// read decodes a fixed-size header structure. A stream ending inside it is a
// container error; any other read failure is passed through wrapped.
func (d *Decoder) read(what string, v any) error {
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		if isEOF(err) {
			return fmt.Errorf("%w: stream ended in %s", ErrContainerFormat, what)
		}
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	return nil
}

func (d *Decoder) skip(what string, n int64) error {
	for n > 0 {
		step := n
		if step > 1<<20 {
			step = 1 << 20
		}
		discarded, err := d.r.Discard(int(step))
		n -= int64(discarded)
		if err != nil {
			if isEOF(err) {
				return fmt.Errorf("%w: stream ended in %s", ErrContainerFormat, what)
			}
			return fmt.Errorf("failed to skip %s: %w", what, err)
		}
	}
	return nil
}

// Spec returns the parsed format parameters
func (d *Decoder) Spec() Spec {
	return d.spec
}

// Len returns the number of samples the data chunk declares, or -1 if unknown.
func (d *Decoder) Len() int {
	if d.dataSize < 0 {
		return -1
	}
	return int(d.dataSize / 2)
}

// Next returns the next interleaved sample. It returns io.EOF at the end of
// the data chunk. Under PolicyLenient a truncated trailing sample yields
// ErrSkippedSample; under PolicyStrict it yields ErrContainerFormat.
func (d *Decoder) Next() (int16, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.remaining == 0 {
		d.err = io.EOF
		return 0, d.err
	}

	want := 2
	if d.remaining == 1 {
		want = 1
	}
	n, err := io.ReadFull(d.r, d.buf[:want])
	if d.remaining > 0 {
		d.remaining -= int64(n)
	}
	if n == 2 {
		return int16(binary.LittleEndian.Uint16(d.buf[:])), nil
	}
	if err != nil && !isEOF(err) {
		d.err = fmt.Errorf("failed to read sample: %w", err)
		return 0, d.err
	}

	// Fewer bytes than a whole sample are left
	if n == 0 && d.remaining < 0 {
		d.err = io.EOF
		return 0, d.err
	}
	if d.policy == PolicyStrict {
		if n == 0 {
			d.err = fmt.Errorf("%w: data chunk ended %d bytes early", ErrContainerFormat, d.remaining)
		} else {
			d.err = fmt.Errorf("%w: truncated sample of %d byte", ErrContainerFormat, n)
		}
		return 0, d.err
	}
	if n == 0 {
		d.err = io.EOF
		return 0, d.err
	}
	d.remaining = 0
	return 0, fmt.Errorf("%w: truncated sample of %d byte", ErrSkippedSample, n)
}

// padded rounds a chunk size up to the RIFF word boundary
func padded(size uint32) int64 {
	return int64(size) + int64(size&1)
}

// isEOF reports a plain end of stream. Readers signal it with the bare
// sentinels; a wrapped EOF is a failure the source reported and stays one.
func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// EncodeWAV encodes interleaved PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate int, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("channel count must be 1 or 2, got %d", channels)
	}

	// Calculate sizes
	numChannels := uint16(channels)
	bitsPerSample := uint16(16)          // 16-bit PCM
	dataSize := uint32(len(samples) * 2) // 2 bytes per sample
	fileSize := 36 + dataSize            // WAV header is 44 bytes, data starts at offset 44

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes a complete in-memory WAV file into interleaved samples
func DecodeWAV(data []byte) ([]int16, Spec, error) {
	dec, err := NewDecoder(bytes.NewReader(data), DecoderOptions{Policy: PolicyStrict})
	if err != nil {
		return nil, Spec{}, err
	}

	samples := make([]int16, 0, min(max(dec.Len(), 0), len(data)/2))
	for {
		s, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Spec{}, err
		}
		samples = append(samples, s)
	}

	return samples, dec.Spec(), nil
}
