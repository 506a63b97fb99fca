package device

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
)

// Information about a compute platform and its devices.
type PlatformInfo struct {
	Profile    string
	Version    string
	Name       string
	Vendor     string
	Extensions string
	Devices    []Device
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	buf.WriteString(
		fmt.Sprintf(
			"Version:    %s\nName:       %s\nVendor:     %s\nExtensions: %s\nDevices:\n",
			pl.Version,
			pl.Name,
			pl.Vendor,
			pl.Extensions,
		),
	)

	for dIdx, d := range pl.Devices {
		buf.WriteString(fmt.Sprintf("  Device %02d:\n", dIdx))
		buf.WriteString(indentRegex.ReplaceAllString(d.Info().String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}

// The native platform is always available and exposes a single CPU device
// that runs kernels on goroutines.
func nativePlatform() PlatformInfo {
	return PlatformInfo{
		Profile: "HOST_PROFILE",
		Version: runtime.Version(),
		Name:    "Go native",
		Vendor:  "stereoscan",
		Devices: []Device{NewCPUDevice(runtime.NumCPU())},
	}
}

// Get information about supported platforms and devices. The native
// platform is listed first, followed by any opencl platforms.
func GetPlatformInfo() ([]PlatformInfo, error) {
	platforms := []PlatformInfo{nativePlatform()}

	clPlatforms, err := openclPlatforms()
	if err != nil {
		return nil, err
	}

	return append(platforms, clPlatforms...), nil
}

// Scan all available platforms and select devices that match the given query.
func SelectDevices(typeMask Type, matchName string) ([]Device, error) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		return nil, err
	}
	list := make([]Device, 0)
	for _, p := range platforms {
		for _, d := range p.Devices {
			info := d.Info()

			// Match type
			if info.Type&typeMask != info.Type {
				continue
			}

			// Match name
			if matchName != "" && !strings.Contains(info.Name, matchName) {
				continue
			}

			list = append(list, d)
		}
	}
	return list, nil
}

// Find the first device matching one of the supplied names, trying them in
// order. An empty name matches any device of the requested type.
func FindDevice(typeMask Type, names ...string) (Device, error) {
	if len(names) == 0 {
		names = []string{""}
	}
	for _, name := range names {
		devList, err := SelectDevices(typeMask, name)
		if err != nil {
			return nil, err
		}

		if len(devList) != 0 {
			return devList[0], nil
		}
	}

	return nil, fmt.Errorf("%w (type mask %#x, names %q)", ErrNoDevices, uint8(typeMask), names)
}
