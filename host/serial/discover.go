package serial

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// USBProduct is the product string the board's USB-serial bridge reports.
const USBProduct = "SiliconToaster"

// Discover finds the device path of a connected board by its USB product
// string. With an empty serialNumber any board matches; otherwise only the
// board with that serial number does. Exactly one board must match.
func Discover(serialNumber string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerating serial ports: %w", err)
	}

	var matches []string
	for _, port := range ports {
		if !port.IsUSB || port.Product != USBProduct {
			continue
		}
		if serialNumber != "" && port.SerialNumber != serialNumber {
			continue
		}
		matches = append(matches, port.Name)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s device found", USBProduct)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple %s devices found, pass a serial number to pick one", USBProduct)
	}
}
