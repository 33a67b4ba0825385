//go:build windows

package serial

import (
	"golang.org/x/sys/windows/registry"
)

func listRegistryPorts() ([]RegistryEntry, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM`, registry.READ)
	if err != nil {
		return nil, err
	}
	defer k.Close()

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]RegistryEntry, 0, len(names))
	for _, name := range names {
		port, _, err := k.GetStringValue(name)
		if err != nil {
			continue
		}
		entries = append(entries, RegistryEntry{Name: name, Port: port})
	}
	return entries, nil
}
