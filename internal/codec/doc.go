// Package codec encodes PCM sample sequences to MP3 through libmp3lame.
//
// Each logical output gets its own Encoder configured at construction for its
// channel count. An encode sizes its destination with MaxEncodedSize, encodes
// the whole finalized buffer and flushes the codec before returning, so a
// returned buffer is always complete. Building requires cgo and the libmp3lame
// development headers.
package codec
