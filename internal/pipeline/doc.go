// Package pipeline turns object-created notifications into MP3 deliveries.
//
// For every record the orchestrator fetches the WAV object through a chunk
// bridge, decodes and splits it, encodes left, right and joint-stereo MP3s
// (one MP3 for mono input) and stages them on local disk. Once every record of
// an invocation is staged the outputs are delivered either as one dated zip
// archive or as individual objects next to their sources.
//
// Processing is fail-fast: the first failing record ends the invocation with
// a *RecordError and nothing is delivered.
package pipeline
