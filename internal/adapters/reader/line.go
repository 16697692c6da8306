// Package reader provides tag reader adapters: a line-oriented reader for
// keyboard-wedge and serial scanners, and a simulated reader for bench runs.
package reader

import (
	"bufio"
	"context"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/bft-labs/tagrelay/internal/domain"
)

// LineReader reads one tag id per line from an io.Reader.
type LineReader struct {
	lines     chan lineResult
	done      chan struct{}
	closeOnce sync.Once
}

type lineResult struct {
	text string
	err  error
}

// NewLineReader starts scanning r in the background. The goroutine exits when
// r is exhausted or, after Close, once its pending line is dropped.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
	go lr.scan(r)
	return lr
}

func (lr *LineReader) scan(r io.Reader) {
	defer close(lr.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !lr.send(lineResult{text: text}) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		lr.send(lineResult{err: err})
	}
}

func (lr *LineReader) send(res lineResult) bool {
	select {
	case lr.lines <- res:
		return true
	case <-lr.done:
		return false
	}
}

// Read blocks until a non-blank line is available. It returns io.EOF when
// the input ends or the reader is closed.
func (lr *LineReader) Read(ctx context.Context) (domain.TagRead, error) {
	select {
	case <-ctx.Done():
		return domain.TagRead{}, ctx.Err()
	case <-lr.done:
		return domain.TagRead{}, io.EOF
	case res, ok := <-lr.lines:
		if !ok {
			return domain.TagRead{}, io.EOF
		}
		if res.err != nil {
			return domain.TagRead{}, res.err
		}
		return domain.TagRead{TagID: TagID(res.text), Text: res.text}, nil
	}
}

// Close releases the scan goroutine. A goroutine blocked reading the
// underlying reader exits after its next line or when that reader closes.
func (lr *LineReader) Close() error {
	lr.closeOnce.Do(func() { close(lr.done) })
	return nil
}

// TagID derives a stable numeric id from tag text (FNV-1a).
func TagID(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}
