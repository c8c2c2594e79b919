// Package audio decodes PCM WAV containers and demultiplexes their samples.
// It parses the RIFF header from a byte stream, exposes a sample iterator with
// a configurable corrupt-frame policy, and splits interleaved stereo into
// per-channel sequences for encoding.
package audio
