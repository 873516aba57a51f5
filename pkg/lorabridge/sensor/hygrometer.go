// Package sensor turns transducer samples into sensor readings.
package sensor

import (
	"fmt"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/message"
)

// AnalogReader samples one ADC channel.
type AnalogReader interface {
	ReadRaw() (int, error)
}

// Transducer produces readings for a node.
type Transducer interface {
	Read(node lorabridge.NodeID, timestamp uint32) (message.SensorReading, error)
}

const (
	// HygrometerType is the sensor_type reported by Hygrometer.
	HygrometerType = "hygrometer"
	// PlaceholderBattery is reported until the nodes get a battery gauge.
	PlaceholderBattery = 100
)

var _ Transducer = &Hygrometer{}

// Hygrometer is a resistive soil-moisture probe on a 10-bit ADC. A higher raw
// value means drier soil.
type Hygrometer struct {
	ADC AnalogReader
	// Wet and Dry are the raw readings of saturated and fully dry soil.
	Wet, Dry int
}

// NewHygrometer uses the default 0..1023 calibration.
func NewHygrometer(adc AnalogReader) *Hygrometer {
	return &Hygrometer{ADC: adc, Wet: 0, Dry: 1023}
}

// Read samples the probe.
func (h *Hygrometer) Read(node lorabridge.NodeID, timestamp uint32) (message.SensorReading, error) {
	raw, err := h.ADC.ReadRaw()
	if err != nil {
		return message.SensorReading{}, fmt.Errorf("read hygrometer: %w", err)
	}
	return message.SensorReading{
		Node:       node,
		SensorType: HygrometerType,
		SensorData: float64(h.MoisturePercent(raw)),
		RawValue:   raw,
		Timestamp:  timestamp,
		Battery:    PlaceholderBattery,
	}, nil
}

// MoisturePercent maps a raw sample onto 100 (at Wet) .. 0 (at Dry), clamped to 0..100.
func (h *Hygrometer) MoisturePercent(raw int) int {
	if h.Wet == h.Dry {
		return 0
	}
	percent := (raw-h.Wet)*(0-100)/(h.Dry-h.Wet) + 100
	return min(max(percent, 0), 100)
}
