// Package handoff implements the byte-at-a-time bus exchange between the master
// node (responder) and the gateway (initiator).
//
// The initiator sends Start. The responder answers Ack when it has content staged,
// NoData otherwise. After an Ack each further transfer returns the next byte of the
// staged content, and a Terminator once the content is exhausted.
package handoff

// Control bytes of the bus protocol.
const (
	Start      byte = 0xA5
	Ack        byte = 0x06
	NoData     byte = 0x15
	Terminator byte = 0x00

	// Filler is clocked out by the initiator while pulling content bytes.
	Filler byte = 0x00
)

// MaxTransfer bounds the number of content transfers in one poll.
const MaxTransfer = 512
