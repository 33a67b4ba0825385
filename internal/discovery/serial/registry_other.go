//go:build !windows

package serial

import "errors"

func listRegistryPorts() ([]RegistryEntry, error) {
	return nil, errors.New("serial port registry is only available on windows")
}
