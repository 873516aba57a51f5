package lorabridge

import (
	"fmt"
	"time"
)

// RadioSettings describes how the LoRa module is configured at boot.
type RadioSettings struct {
	FrequencyMHz float64
	TxPowerDBm   int
	CADTimeout   time.Duration
}

// DefaultRadioSettings is the configuration used by the field units.
var DefaultRadioSettings = RadioSettings{
	FrequencyMHz: 915.0,
	TxPowerDBm:   23,
	CADTimeout:   500 * time.Millisecond,
}

// Validate checks the settings against the ranges an RFM95 module accepts.
func (s RadioSettings) Validate() error {
	switch {
	case s.FrequencyMHz < 137 || s.FrequencyMHz > 1020:
		return fmt.Errorf("frequency %.1f MHz is out of range", s.FrequencyMHz)
	case s.TxPowerDBm < 5 || s.TxPowerDBm > 23:
		return fmt.Errorf("tx power %d dBm is out of range", s.TxPowerDBm)
	case s.CADTimeout < 0:
		return fmt.Errorf("negative CAD timeout %s", s.CADTimeout)
	}
	return nil
}
