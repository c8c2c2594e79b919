package bridge

import (
	"context"
	"io"
)

// DefaultChunkSize is used when ReaderSource is given a non-positive size.
const DefaultChunkSize = 64 * 1024

type readerSource struct {
	r       io.Reader
	size    int
	pending error
}

// ReaderSource adapts an object body into a ChunkSource emitting chunks of at
// most chunkSize bytes, each freshly allocated so ownership can move on.
func ReaderSource(r io.Reader, chunkSize int) ChunkSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerSource{r: r, size: chunkSize}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	if s.pending != nil {
		return nil, s.pending
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf := make([]byte, s.size)
		n, err := s.r.Read(buf)
		if n > 0 {
			// Surface the error on the following call so the data is not lost
			s.pending = err
			return buf[:n], nil
		}
		if err != nil {
			s.pending = err
			return nil, err
		}
	}
}
