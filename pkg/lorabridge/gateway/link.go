package gateway

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LinkQuality reports the signal strength of the gateway's own uplink in dBm,
// or 0 when it is not associated.
type LinkQuality interface {
	RSSI() int
}

// StaticLink reports a fixed value.
type StaticLink int

func (l StaticLink) RSSI() int { return int(l) }

// DefaultWirelessPath is where Linux exposes wireless interface statistics.
const DefaultWirelessPath = "/proc/net/wireless"

// ProcWireless reads the signal level of a Linux wireless interface.
type ProcWireless struct {
	Interface string
	// Path defaults to DefaultWirelessPath.
	Path string
}

// RSSI returns the current signal level, or 0 when it cannot be read.
func (w ProcWireless) RSSI() int {
	level, err := w.Read()
	if err != nil {
		return 0
	}
	return level
}

// Read returns the signal level column for the interface.
func (w ProcWireless) Read() (int, error) {
	path := w.Path
	if path == "" {
		path = DefaultWirelessPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parseWireless(data, w.Interface)
}

// parseWireless extracts the level column from /proc/net/wireless contents:
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt ...
//	 wlan0: 0000   54.  -56.  -256        0      0 ...
func parseWireless(data []byte, iface string) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 0; scanner.Scan(); line++ {
		if line < 2 {
			continue
		}
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("interface %s: short line", iface)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("interface %s: level: %w", iface, err)
		}
		return int(level), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("interface %s not listed", iface)
}
