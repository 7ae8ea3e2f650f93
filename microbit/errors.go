package microbit

import "errors"

var (
	ErrNotConnected    = errors.New("peripheral not connected")
	ErrBusy            = errors.New("previous command not acknowledged yet")
	ErrPayloadTooLarge = errors.New("command exceeds transport write size")
	ErrFrameTooShort   = errors.New("telemetry frame too short")
	ErrLinkStale       = errors.New(DataStoppedReason)
	ErrInvalidPinMap   = errors.New("invalid pin map")
)
