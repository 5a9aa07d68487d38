//go:build !linux

package relay

import "errors"

func openHardware(Config) (Backend, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
