package handoff

// Responder is the master side of the bus. Exchange is its only entry point and
// it must be called from a single handler context, the way an SPI transfer-complete
// interrupt would call it. It takes no locks and does not allocate.
type Responder struct {
	buf *Buffer

	// owned by the handler context
	serving *staged
	cursor  int
}

// NewResponder serves the content staged in buf.
func NewResponder(buf *Buffer) *Responder {
	return &Responder{buf: buf}
}

// Exchange consumes one received byte and returns the byte to shift out.
func (r *Responder) Exchange(rx byte) byte {
	if rx == Start {
		return r.start()
	}
	if r.serving == nil {
		return Terminator
	}
	data := r.serving.data
	if r.cursor < len(data) && data[r.cursor] != Terminator {
		tx := data[r.cursor]
		r.cursor++
		return tx
	}
	r.buf.delivered.Store(r.serving.gen)
	r.serving = nil
	r.cursor = 0
	r.buf.serving.Store(false)
	return Terminator
}

// State reports whether a transfer is in flight and the position reached in it.
func (r *Responder) State() (serving bool, cursor int) {
	return r.serving != nil, r.cursor
}

// start handles a poll. A Start while serving replays the content from the beginning.
func (r *Responder) start() byte {
	current := r.buf.current.Load()
	if current == nil || len(current.data) == 0 {
		r.serving = nil
		r.buf.serving.Store(false)
		return NoData
	}
	r.serving = current
	r.cursor = 0
	r.buf.serving.Store(true)
	return Ack
}
