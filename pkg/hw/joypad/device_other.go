//go:build !linux

package joypad

// Open is not supported on this platform.
func Open(string) (Device, error) {
	return nil, ErrUnsupported
}
