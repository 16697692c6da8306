package ports

import (
	"context"
	"io"

	"github.com/bft-labs/tagrelay/internal/domain"
)

// TagReader blocks until a tag is presented.
type TagReader interface {
	// Read returns the next tag. io.EOF means the source is exhausted and the
	// scan loop should stop; any other error is a transient read failure.
	Read(ctx context.Context) (domain.TagRead, error)
}

// ErrReaderExhausted is returned by readers with a finite source.
var ErrReaderExhausted = io.EOF
