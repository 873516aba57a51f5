package gateway

import (
	"os"
	"path/filepath"
	"testing"
)

const wireless = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   54.  -56.  -256        0      0      0      0      0        0
  wlp2s0: 0000   70.  -38.  -256        0      0      0      3     12        0
`

func TestParseWireless(t *testing.T) {
	tests := []struct {
		iface   string
		want    int
		wantErr bool
	}{
		{"wlan0", -56, false},
		{"wlp2s0", -38, false},
		{"eth0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.iface, func(t *testing.T) {
			got, err := parseWireless([]byte(wireless), tt.iface)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("level = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcWirelessRSSI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wireless")
	if err := os.WriteFile(path, []byte(wireless), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := (ProcWireless{Interface: "wlan0", Path: path}).RSSI(); got != -56 {
		t.Errorf("RSSI = %d", got)
	}
	missing := ProcWireless{Interface: "wlan0", Path: filepath.Join(t.TempDir(), "none")}
	if got := missing.RSSI(); got != 0 {
		t.Errorf("RSSI without file = %d", got)
	}
}
