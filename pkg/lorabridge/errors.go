package lorabridge

import (
	"errors"
)

var (
	// ErrNoMessage is returned by Mesh.Receive when the bounded wait elapsed without traffic.
	ErrNoMessage = errors.New("no message received")
	// ErrMalformedPayload indicates a payload that is not one of the known document kinds.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrNotConnected is returned when publishing through a transport that has no broker session.
	ErrNotConnected = errors.New("client is not connected to broker")
	// ErrIdentityOutOfRange is returned for identities outside of 1..node count.
	ErrIdentityOutOfRange = errors.New("node identity out of range")
	// ErrRadioInit is returned when the radio module cannot be brought up. It is fatal for the node.
	ErrRadioInit = errors.New("radio init failed")
)
