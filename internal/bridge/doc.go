// Package bridge turns an asynchronous, chunked byte source into a blocking
// io.Reader.
//
// A background goroutine pulls chunks from a ChunkSource and hands them over
// through a single-producer/single-consumer queue, so the decoder can consume
// an object body with ordinary synchronous reads while the fetch proceeds
// concurrently. Chunks arrive in order with no loss or duplication. A pull
// failure is reported to the reader as an error wrapping ErrSourceRead and
// never as a clean end of stream.
package bridge
