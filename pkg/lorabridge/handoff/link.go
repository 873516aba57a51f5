package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var _ Exchanger = Loopback{}

// Loopback wires an initiator straight to a responder in the same process. The
// goroutine calling Exchange becomes the responder's handler context.
type Loopback struct {
	Responder *Responder
}

func (l Loopback) Exchange(tx byte) (byte, error) {
	return l.Responder.Exchange(tx), nil
}

var _ Exchanger = &StreamExchanger{}

// StreamExchanger runs the bus over a byte stream such as a serial port: every
// transfer writes one byte and reads the reply.
type StreamExchanger struct {
	Stream io.ReadWriter

	buf [1]byte
}

func (se *StreamExchanger) Exchange(tx byte) (byte, error) {
	se.buf[0] = tx
	if _, err := se.Stream.Write(se.buf[:]); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(se.Stream, se.buf[:]); err != nil {
		return 0, err
	}
	return se.buf[0], nil
}

// Serve answers every byte read from stream through r until the stream fails or
// ctx is cancelled. It is the handler context for r.
func Serve(ctx context.Context, stream io.ReadWriter, r *Responder) error {
	var buf [1]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(stream, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read bus byte: %w", err)
		}
		buf[0] = r.Exchange(buf[0])
		if _, err := stream.Write(buf[:]); err != nil {
			return fmt.Errorf("write bus byte: %w", err)
		}
	}
}
