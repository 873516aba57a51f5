package meshsim

import "sync/atomic"

// ADC is a settable analog channel for sensor.AnalogReader.
type ADC struct {
	raw atomic.Int32
	// Drift is added to the value after every read, wrapping within 0..1023.
	Drift int32
}

// NewADC returns a channel reading raw.
func NewADC(raw int) *ADC {
	a := &ADC{}
	a.Set(raw)
	return a
}

// Set changes the value returned by the next read.
func (a *ADC) Set(raw int) {
	a.raw.Store(int32(raw))
}

func (a *ADC) ReadRaw() (int, error) {
	v := a.raw.Load()
	if a.Drift != 0 {
		a.raw.Store(((v+a.Drift)%1024 + 1024) % 1024)
	}
	return int(v), nil
}
