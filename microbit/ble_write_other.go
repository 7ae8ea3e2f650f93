//go:build !darwin && !windows

package microbit

import (
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// BlueZ characteristics only expose write without response, the send gate
// completes on the local write and relies on its timeout otherwise.
func writeCharacteristic(c bluetooth.DeviceCharacteristic, buf []byte, withResponse bool, log logrus.FieldLogger) error {
	if withResponse {
		log.Debug("write with response unavailable, writing without response")
	}
	_, err := c.WriteWithoutResponse(buf)
	return err
}
