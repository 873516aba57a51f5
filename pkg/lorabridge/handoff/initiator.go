package handoff

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/exepirit/lorabridge/internal/log"
)

// Exchanger performs one full-duplex byte transfer on the bus.
type Exchanger interface {
	Exchange(tx byte) (rx byte, err error)
}

// DefaultByteDelay is the pause between content transfers, giving the responder
// time to load the next byte.
const DefaultByteDelay = 50 * time.Microsecond

// Initiator is the gateway side of the bus.
type Initiator struct {
	// Link is the bus the responder sits on.
	Link Exchanger
	// ByteDelay is the pause between content transfers. Zero disables it.
	ByteDelay time.Duration
	// MaxTransfer bounds the number of content transfers per poll. Defaults to MaxTransfer.
	MaxTransfer int
	// Logger receives protocol diagnostics.
	Logger log.Logger
}

// Poll asks the responder for its staged content. It returns nil when the
// responder has nothing staged or answered with an unknown control byte.
func (in *Initiator) Poll(ctx context.Context) ([]byte, error) {
	logger := log.OrNOOP(in.Logger)

	reply, err := in.Link.Exchange(Start)
	if err != nil {
		return nil, fmt.Errorf("start transfer: %w", err)
	}
	switch reply {
	case Ack:
	case NoData:
		return nil, nil
	default:
		logger.Debug("Unexpected reply to start", "reply", fmt.Sprintf("0x%02x", reply))
		return nil, nil
	}

	limit := in.MaxTransfer
	if limit <= 0 {
		limit = MaxTransfer
	}

	var content bytes.Buffer
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := in.Link.Exchange(Filler)
		if err != nil {
			return nil, fmt.Errorf("transfer byte %d: %w", i, err)
		}
		if b == Terminator {
			return content.Bytes(), nil
		}
		content.WriteByte(b)
		if in.ByteDelay > 0 {
			time.Sleep(in.ByteDelay)
		}
	}

	logger.Warn("Transfer bound reached without terminator", "bytes", content.Len())
	return content.Bytes(), ErrTruncated
}
