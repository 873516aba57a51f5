package handoff

import (
	"bytes"
	"sync/atomic"
)

// Buffer is the single-slot staging area shared by the master's main loop and
// the bus handler. The main loop is the only writer of content; the handler only
// flips the serving flag and records which content it delivered. Content is
// published as an immutable snapshot, so a transfer in flight never observes a
// partial write.
type Buffer struct {
	current   atomic.Pointer[staged]
	serving   atomic.Bool
	delivered atomic.Uint64

	gen uint64 // main loop only
}

type staged struct {
	data []byte
	gen  uint64
}

// Stage replaces the content wholesale and returns its generation. It refuses
// to touch the content while a transfer is being served.
func (b *Buffer) Stage(content []byte) (uint64, error) {
	if bytes.IndexByte(content, Terminator) >= 0 {
		return 0, ErrEmbeddedTerminator
	}
	if b.serving.Load() {
		return 0, ErrServing
	}
	b.gen++
	b.current.Store(&staged{data: bytes.Clone(content), gen: b.gen})
	return b.gen, nil
}

// Serving reports whether a transfer is in flight.
func (b *Buffer) Serving() bool {
	return b.serving.Load()
}

// Len returns the length of the staged content.
func (b *Buffer) Len() int {
	if s := b.current.Load(); s != nil {
		return len(s.data)
	}
	return 0
}

// Content returns a copy of the staged content.
func (b *Buffer) Content() []byte {
	if s := b.current.Load(); s != nil {
		return bytes.Clone(s.data)
	}
	return nil
}

// Delivered returns the generation of the content most recently transferred up
// to its terminator, or 0 when nothing was delivered yet.
func (b *Buffer) Delivered() uint64 {
	return b.delivered.Load()
}
