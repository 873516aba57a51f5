// Package message holds the JSON documents exchanged over the mesh and the
// hand-off bus, and decides which kind a payload is.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

// Kind identifies a payload variant.
type Kind uint8

const (
	KindRoutingReport Kind = iota + 1
	KindSensorReading
	KindRoutingBundle
)

func (k Kind) String() string {
	switch k {
	case KindRoutingReport:
		return "routing_report"
	case KindSensorReading:
		return "sensor_reading"
	case KindRoutingBundle:
		return "routing_bundle"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Payload is one of RoutingReport, SensorReading or RoutingBundle.
type Payload interface {
	Kind() Kind
}

// Hop is one routing table row: the next hop towards a destination and the
// signal quality last observed on that hop.
type Hop struct {
	N lorabridge.NodeID `json:"n"`
	R int16             `json:"r"`
}

// RoutingReport lists one Hop per destination, in ascending destination order.
type RoutingReport []Hop

func (RoutingReport) Kind() Kind { return KindRoutingReport }

// MarshalJSON renders an empty report as [] rather than null.
func (r RoutingReport) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Hop(r))
}

// SensorReading is a single transducer sample reported by a sensor node.
type SensorReading struct {
	Node       lorabridge.NodeID `json:"node"`
	SensorType string            `json:"sensor_type"`
	SensorData float64           `json:"sensor_data"`
	RawValue   int               `json:"raw_value"`
	Timestamp  uint32            `json:"timestamp"`
	Battery    int               `json:"battery"`
}

func (SensorReading) Kind() Kind { return KindSensorReading }

// RoutingBundle is the master's routing summary staged for the gateway.
type RoutingBundle struct {
	Node         lorabridge.NodeID `json:"node"`
	RoutingTable RoutingReport     `json:"routing_table"`
	Timestamp    uint32            `json:"timestamp"`
}

func (RoutingBundle) Kind() Kind { return KindRoutingBundle }

// Shape is the JSON container type announced by a payload's first byte.
type Shape uint8

const (
	ShapeArray Shape = iota + 1
	ShapeObject
)

// Sniff looks at the leading byte only. It is a cheap filter, Parse decides the kind.
func Sniff(raw []byte) (Shape, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: empty", lorabridge.ErrMalformedPayload)
	}
	switch raw[0] {
	case '[':
		return ShapeArray, nil
	case '{':
		return ShapeObject, nil
	default:
		return 0, fmt.Errorf("%w: leading byte 0x%02x", lorabridge.ErrMalformedPayload, raw[0])
	}
}

// Parse decodes raw into its payload variant.
func Parse(raw []byte) (Payload, error) {
	shape, err := Sniff(raw)
	if err != nil {
		return nil, err
	}

	if shape == ShapeArray {
		var report RoutingReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("%w: %w", lorabridge.ErrMalformedPayload, err)
		}
		return report, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", lorabridge.ErrMalformedPayload, err)
	}

	var payload Payload
	switch {
	case fields["routing_table"] != nil:
		var bundle RoutingBundle
		err = json.Unmarshal(raw, &bundle)
		payload = bundle
	case fields["sensor_data"] != nil:
		var reading SensorReading
		err = json.Unmarshal(raw, &reading)
		payload = reading
	default:
		return nil, fmt.Errorf("%w: object has neither routing_table nor sensor_data", lorabridge.ErrMalformedPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lorabridge.ErrMalformedPayload, err)
	}
	return payload, nil
}

// Encode renders a payload as compact JSON text.
func Encode(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Envelope is a classified mesh message.
type Envelope struct {
	From    lorabridge.NodeID
	Payload Payload
	Raw     []byte
}

// Kind returns the kind of the enclosed payload.
func (e Envelope) Kind() Kind {
	return e.Payload.Kind()
}

// Decode classifies a received datagram.
func Decode(d lorabridge.Datagram) (Envelope, error) {
	payload, err := Parse(d.Payload)
	if err != nil {
		return Envelope{From: d.From, Raw: d.Payload}, err
	}
	return Envelope{From: d.From, Payload: payload, Raw: d.Payload}, nil
}
