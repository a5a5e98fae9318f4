package hardware

import (
	"errors"
	"os"
	"testing"
)

func TestReadCPUSerial(t *testing.T) {
	got, err := ReadCPUSerial("testdata/cpuinfo")
	if err != nil {
		t.Fatalf("ReadCPUSerial: %v", err)
	}
	if got != "a3b2c1d0" {
		t.Errorf("serial = %q, want a3b2c1d0", got)
	}

	if _, err := ReadCPUSerial("testdata/cpuinfo_noserial"); !errors.Is(err, ErrNoSerial) {
		t.Errorf("no serial: error = %v, want ErrNoSerial", err)
	}
	if _, err := ReadCPUSerial("testdata/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want ErrNotExist", err)
	}
}

func TestResolveDeviceID(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		path       string
		want       string
		wantErr    bool
	}{
		{name: "configured wins", configured: "board-1", path: "testdata/missing", want: "board-1"},
		{name: "derived", path: "testdata/cpuinfo", want: "gpio-a3b2c1d0"},
		{name: "no serial", path: "testdata/cpuinfo_noserial", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDeviceID("gpio", tt.configured, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("id = %q, want %q", got, tt.want)
			}
		})
	}
}
