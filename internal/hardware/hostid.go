package hardware

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CPUInfoPath is where the board serial number is read from.
const CPUInfoPath = "/proc/cpuinfo"

// ReadCPUSerial returns the "Serial" value from a cpuinfo file with leading
// zeros stripped, e.g. "00000000a3b2c1d0" becomes "a3b2c1d0".
func ReadCPUSerial(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reading cpu serial: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Serial" {
			continue
		}
		serial := strings.TrimLeft(strings.TrimSpace(value), "0")
		if serial == "" {
			return "", ErrNoSerial
		}
		return serial, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading cpu serial: %w", err)
	}
	return "", ErrNoSerial
}

// ResolveDeviceID returns configured when set, otherwise prefix + "-" + the
// CPU serial read from cpuinfoPath.
func ResolveDeviceID(prefix, configured, cpuinfoPath string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	serial, err := ReadCPUSerial(cpuinfoPath)
	if err != nil {
		return "", fmt.Errorf("%s device id: %w (set device_id in config)", prefix, err)
	}
	return prefix + "-" + serial, nil
}
