// Package find enumerates serial ports that may host the picoammeter's
// RS-232 adapter.
package find

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial"
)

// Port is a candidate serial port, with USB descriptor metadata when the
// platform exposes it.
type Port struct {
	Device    string // port name as the OS knows it, e.g. COM14 or ttyUSB0
	Path      string // sysfs device path, Linux only
	IDVendor  string
	IDProduct string
	Mfg       string
	Prod      string
	Serial    string
}

func (p Port) String() string {
	return fmt.Sprintf("dev %s vid/pid %s/%s mfg/prod %s/%s serial %s",
		p.Device, p.IDVendor, p.IDProduct, p.Mfg, p.Prod, p.Serial)
}

// FilterFn narrows a port list. The first port for which it returns true is
// chosen.
type FilterFn func(*Port) bool

// BySerial matches a port by its USB serial number.
func BySerial(s string) FilterFn {
	return func(p *Port) bool { return p.Serial == s }
}

// ByDevice matches a port by name, ignoring case so COM names compare the
// way Windows treats them.
func ByDevice(dev string) FilterFn {
	return func(p *Port) bool { return strings.EqualFold(p.Device, dev) }
}

// Keithley matches adapters whose USB descriptors mention Keithley.
func Keithley(p *Port) bool {
	return strings.Contains(strings.ToLower(p.Mfg), "keithley") ||
		strings.Contains(strings.ToLower(p.Prod), "keithley")
}

// Ports lists the serial ports on the system, enriched with USB descriptor
// metadata where sysfs provides it. Enrichment failures are not errors; a
// bare port name is still a usable candidate.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		p := Port{Device: filepath.Base(name)}
		enrich(&p)
		ports = append(ports, p)
	}
	return ports, nil
}

// Find searches for a serial port. If filter is not nil, it narrows the
// choices; the first port it accepts (if any) is chosen. Zero candidates or
// an ambiguous set of more than one is an error.
func Find(filter FilterFn) (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	return pick(ports, filter)
}

func pick(ports []Port, filter FilterFn) (string, error) {
	if filter != nil {
		for i := range ports {
			if filter(&ports[i]) {
				ports = ports[i : i+1]
				break
			}
		}
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no matching serial ports found")
	}
	if len(ports) == 1 {
		return ports[0].Device, nil
	}
	return "", fmt.Errorf("multiple serial ports: %v", ports)
}

// enrich fills in USB descriptor strings from sysfs. A USB serial device
// appears as a symlink under /sys/class/tty whose resolved path contains
// "usb"; the descriptor files sit two levels above the interface directory.
func enrich(p *Port) {
	abs, err := filepath.EvalSymlinks(filepath.Join("/sys/class/tty", p.Device))
	if err != nil || !strings.Contains(abs, "usb") {
		return
	}
	p.Path = abs
	dev, err := filepath.EvalSymlinks(filepath.Join(abs, "device"))
	if err != nil {
		return
	}
	dir := filepath.Dir(dev)
	p.IDProduct = sysfsString(dir, "idProduct")
	p.IDVendor = sysfsString(dir, "idVendor")
	p.Mfg = sysfsString(dir, "manufacturer")
	p.Prod = sysfsString(dir, "product")
	p.Serial = sysfsString(dir, "serial")
}

func sysfsString(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return strings.TrimSpace(string(b))
}
