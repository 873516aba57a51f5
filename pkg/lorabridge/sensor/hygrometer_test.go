package sensor

import (
	"errors"
	"testing"
)

type fixedADC struct {
	raw int
	err error
}

func (a fixedADC) ReadRaw() (int, error) { return a.raw, a.err }

func TestMoisturePercent(t *testing.T) {
	h := NewHygrometer(nil)
	tests := []struct {
		raw  int
		want int
	}{
		{0, 100},
		{1023, 0},
		{512, 50},
		{-20, 100},
		{2000, 0},
	}
	for _, tt := range tests {
		if got := h.MoisturePercent(tt.raw); got != tt.want {
			t.Errorf("MoisturePercent(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestHygrometerRead(t *testing.T) {
	h := NewHygrometer(fixedADC{raw: 256})
	reading, err := h.Read(3, 30_001)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if reading.Node != 3 || reading.SensorType != HygrometerType || reading.RawValue != 256 {
		t.Errorf("unexpected reading %+v", reading)
	}
	if reading.SensorData != 75 {
		t.Errorf("SensorData = %v, want 75", reading.SensorData)
	}
	if reading.Battery != PlaceholderBattery || reading.Timestamp != 30_001 {
		t.Errorf("unexpected reading %+v", reading)
	}
}

func TestHygrometerReadError(t *testing.T) {
	h := NewHygrometer(fixedADC{err: errors.New("adc busy")})
	if _, err := h.Read(2, 0); err == nil {
		t.Fatal("expected error")
	}
}
