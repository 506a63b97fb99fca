//go:build !opencl

package device

// Built without opencl support; only the native platform is available.
func openclPlatforms() ([]PlatformInfo, error) {
	return nil, nil
}
