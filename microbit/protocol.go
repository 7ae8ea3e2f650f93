package microbit

import "time"

// see https://github.com/LLK/scratch-microbit-firmware/blob/master/protocol.md

// Tag is the first byte of every outbound command frame.
type Tag byte

const (
	CmdDisplayText Tag = 0x81
	CmdDisplayLED  Tag = 0x82
	CmdPinPWM      Tag = 0x92
	CmdSlotValue   Tag = 0xa0
)

// Shape is the telemetry discriminator found at ShapeOffset.
type Shape byte

const (
	ShapeEnvironment Shape = 0x01
	ShapeMotion      Shape = 0x02
	ShapeInertial    Shape = 0x03
)

// GATT identifiers of the More service.
const (
	ServiceID  = "f005"                                 // 16-bit short form
	RxCharUUID = "5261da01-fa7e-42ab-850b-7c80220097cc" // telemetry, notify
	TxCharUUID = "5261da02-fa7e-42ab-850b-7c80220097cc" // commands, write
)

// Telemetry frame layout.
const (
	TelemetrySize  = 20
	ButtonAOffset  = 4
	ButtonBOffset  = 5
	FieldsOffset   = 10
	ShapeOffset    = 19
	MatrixRows     = 5
	SlotCount      = 4
	MaxTextLength  = 19
	DefaultMaxSize = 20 // ATT payload of the default 23 byte MTU
)

const (
	// SendTimeout releases the send gate if the peripheral never acknowledges.
	SendTimeout = 5000 * time.Millisecond
	// StaleTimeout is the longest silence on the telemetry characteristic
	// before the link is reported dead.
	StaleTimeout = 4500 * time.Millisecond
	// SendInterval is the pacing hint of every command but display-text.
	SendInterval = 100 * time.Millisecond
	// ScrollDelay is the firmware's per-column scroll delay.
	ScrollDelay = 120 * time.Millisecond

	// G is one standard gravity in raw accelerometer units.
	G = 1024
)

// DataStoppedReason is reported to the transport when the watchdog fires.
const DataStoppedReason = "micro:bit More extension stopped receiving data"
