package handoff

import "errors"

var (
	// ErrServing is returned by Buffer.Stage while a transfer is in flight.
	ErrServing = errors.New("handoff buffer is being served")
	// ErrEmbeddedTerminator is returned by Buffer.Stage for content holding a 0x00 byte.
	ErrEmbeddedTerminator = errors.New("content contains the terminator byte")
	// ErrTruncated is returned by Initiator.Poll when MaxTransfer was reached without a terminator.
	ErrTruncated = errors.New("transfer bound reached before terminator")
)
