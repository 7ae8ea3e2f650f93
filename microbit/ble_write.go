//go:build darwin || windows

package microbit

import (
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

func writeCharacteristic(c bluetooth.DeviceCharacteristic, buf []byte, withResponse bool, _ logrus.FieldLogger) error {
	var err error
	if withResponse {
		_, err = c.Write(buf)
	} else {
		_, err = c.WriteWithoutResponse(buf)
	}
	return err
}
