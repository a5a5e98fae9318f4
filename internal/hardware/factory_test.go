package hardware

import (
	"errors"
	"slices"
	"testing"

	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/config"
)

func TestBuild(t *testing.T) {
	old := cpuinfoPath
	cpuinfoPath = "testdata/cpuinfo"
	t.Cleanup(func() { cpuinfoPath = old })

	cfg := config.HardwareConfig{
		GPIO:      config.GPIOConfig{Enabled: true, InputPins: []int{2, 3}},
		Relay16:   config.Relay16Config{Enabled: true, Port: "/dev/ttyUSB0", Channels: 16},
		Simulated: config.SimulatedConfig{Enabled: false, DeviceID: "sim"},
	}

	sources, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("built %d sources, want 2", len(sources))
	}
	if sources[0].Name() != BackendGPIO || sources[1].Name() != BackendRelay16 {
		t.Errorf("order = %s, %s", sources[0].Name(), sources[1].Name())
	}
	if id := sources[0].(*GPIO).DeviceID(); id != "gpio-a3b2c1d0" {
		t.Errorf("gpio device id = %q", id)
	}
	if id := sources[1].(*Relay16).DeviceID(); id != "relay16-a3b2c1d0" {
		t.Errorf("relay16 device id = %q", id)
	}
}

func TestBuild_ReportsFailuresAndKeepsOthers(t *testing.T) {
	old := cpuinfoPath
	cpuinfoPath = "testdata/cpuinfo_noserial"
	t.Cleanup(func() { cpuinfoPath = old })

	cfg := config.HardwareConfig{
		GPIO:      config.GPIOConfig{Enabled: true, InputPins: []int{2}},
		Simulated: config.SimulatedConfig{Enabled: true, DeviceID: "sim", Inputs: 1},
	}
	sources, err := Build(cfg, nil)
	if !errors.Is(err, ErrNoSerial) {
		t.Errorf("error = %v, want ErrNoSerial", err)
	}
	if len(sources) != 1 || sources[0].Name() != BackendSimulated {
		t.Errorf("sources = %v", sources)
	}
}

func TestNew(t *testing.T) {
	if !slices.Equal(Backends(), []string{"gpio", "relay16", "simulated"}) {
		t.Errorf("Backends() = %v", Backends())
	}
	if _, err := New("phidget22", config.HardwareConfig{}, nil); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("error = %v, want ErrUnknownBackend", err)
	}
	src, err := New(BackendSimulated, config.HardwareConfig{Simulated: config.SimulatedConfig{DeviceID: "s"}}, nil)
	if err != nil || src.Name() != BackendSimulated {
		t.Errorf("New(simulated) = %v, %v", src, err)
	}
}
