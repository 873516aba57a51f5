package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

func TestResolveSensor(t *testing.T) {
	tests := []struct {
		name       string
		stored     *byte
		want       lorabridge.NodeID
		wantWrites int
	}{
		{"erased", nil, 2, 1},
		{"valid stored", ptr(3), 3, 0},
		{"master id", ptr(1), 2, 1},
		{"beyond count", ptr(9), 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MemStore{}
			if tt.stored != nil {
				_ = store.Save(*tt.stored)
				store.writes = 0
			}
			got, err := ResolveSensor(store, 4, 2)
			if err != nil {
				t.Fatalf("ResolveSensor: %v", err)
			}
			if got != tt.want {
				t.Errorf("identity = %d, want %d", got, tt.want)
			}
			if store.Writes() != tt.wantWrites {
				t.Errorf("writes = %d, want %d", store.Writes(), tt.wantWrites)
			}
		})
	}
}

func TestResolveSensorRejectsBadFallback(t *testing.T) {
	if _, err := ResolveSensor(&MemStore{}, 4, 1); !errors.Is(err, lorabridge.ErrIdentityOutOfRange) {
		t.Fatalf("error = %v, want ErrIdentityOutOfRange", err)
	}
}

func TestResolveMaster(t *testing.T) {
	store := &MemStore{}
	_ = store.Save(7)
	id, err := ResolveMaster(store)
	if err != nil || id != lorabridge.MasterID {
		t.Fatalf("ResolveMaster = (%d, %v)", id, err)
	}
	if b, _ := store.Load(); b != 1 {
		t.Errorf("stored byte = %d, want 1", b)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	store := &FileStore{Path: path}

	b, err := store.Load()
	if err != nil || b != Erased {
		t.Fatalf("Load on missing file = (%d, %v), want erased", b, err)
	}
	if err := store.Save(4); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 1 || data[0] != 4 {
		t.Fatalf("file content = %v, want [4]", data)
	}
	if b, _ := store.Load(); b != 4 {
		t.Errorf("Load = %d, want 4", b)
	}
}

func ptr(b byte) *byte { return &b }
