package labctl

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// serialDevicePatterns match communication-capable tty names under /dev
var serialDevicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices (Pico-based units)
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
}

// devDir is a variable so tests can point listing at a scratch directory
var devDir = "/dev"

// ListPorts returns a sorted list of serial ports on the system
func ListPorts() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		for _, pattern := range serialDevicePatterns {
			if !pattern.MatchString(name) {
				continue
			}
			fullPath := filepath.Join(devDir, name)
			if isCharacterDevice(fullPath) {
				ports = append(ports, fullPath)
			}
			break
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// StableLink is a persistent udev alias for a serial device
type StableLink struct {
	Link   string // e.g. /dev/serial/by-id/usb-Raspberry_Pi_Pico_E660...-if00
	Target string // e.g. /dev/ttyACM0
}

// ListStableLinks resolves the /dev/serial/by-id and by-path aliases.
// Configuration should reference these rather than ttyACM numbers, which
// change with enumeration order.
func ListStableLinks() ([]StableLink, error) {
	var links []StableLink
	for _, sub := range []string{"by-id", "by-path"} {
		dir := filepath.Join(devDir, "serial", sub)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			link := filepath.Join(dir, entry.Name())
			target, err := filepath.EvalSymlinks(link)
			if err != nil {
				continue
			}
			links = append(links, StableLink{Link: link, Target: target})
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Link < links[j].Link })
	return links, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial port and, for USB devices, its identity
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	resolved, err := filepath.EvalSymlinks(portPath)
	if err != nil || !isCharacterDevice(resolved) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(resolved)
	info := &PortInfo{
		Name:        name,
		Path:        resolved,
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info)
	}

	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo fills USB identity from the go.bug.st enumerator; ports it
// does not know about are left as-is
func enrichUSBInfo(info *PortInfo) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}
	for _, d := range details {
		if d.Name != info.Path || !d.IsUSB {
			continue
		}
		info.VendorID = d.VID
		info.ProductID = d.PID
		info.SerialNumber = d.SerialNumber
		info.Product = d.Product
		return
	}
}
