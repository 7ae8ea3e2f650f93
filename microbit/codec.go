package microbit

import (
	"encoding/binary"
	"fmt"
)

// Command is one outbound actuator frame before encoding.
// Wire layout: Tag(1) | Payload(0-19)
type Command struct {
	Tag     Tag
	Payload []byte
}

// Record is the shape-specific part of a telemetry frame.
type Record interface {
	Shape() Shape
}

// Environment is carried by ShapeEnvironment frames.
type Environment struct {
	Analog  [3]uint16
	Heading uint16
	Light   uint8
}

// Motion is carried by ShapeMotion frames. Bit i of Digital is the level of
// the i-th pin of PinMap.Digital.
type Motion struct {
	Slots   [SlotCount]int16
	Digital uint8
}

// Inertial is carried by ShapeInertial frames, acceleration in raw units.
type Inertial struct {
	Magnetic uint16
	Accel    [3]int16
}

func (Environment) Shape() Shape { return ShapeEnvironment }
func (Motion) Shape() Shape      { return ShapeMotion }
func (Inertial) Shape() Shape    { return ShapeInertial }

// Bit returns the level of the i-th packed digital pin.
func (m Motion) Bit(i int) uint8 {
	return (m.Digital >> uint(i)) & 1
}

// Telemetry is a decoded inbound frame.
// Layout: ?(4) | ButtonA(1) | ButtonB(1) | ?(4) | Fields(9) | Shape(1)
// Record is nil when the discriminator is not known to this decoder.
type Telemetry struct {
	ButtonA uint8
	ButtonB uint8
	Shape   Shape
	Record  Record
}

// Encode prepends tag to payload. maxSize is the transport's single write
// limit, DefaultMaxSize when <= 0.
func Encode(tag Tag, payload []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if 1+len(payload) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, 1+len(payload), maxSize)
	}
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(tag)
	copy(frame[1:], payload)
	return frame, nil
}

// ParseCommand splits an encoded command frame back into tag and payload.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) < 1 {
		return Command{}, ErrFrameTooShort
	}
	payload := make([]byte, len(frame)-1)
	copy(payload, frame[1:])
	return Command{Tag: Tag(frame[0]), Payload: payload}, nil
}

// Decode parses an inbound telemetry frame. Unknown discriminators are not
// an error: buttons are decoded and Record is left nil.
func Decode(frame []byte) (Telemetry, error) {
	if len(frame) < TelemetrySize {
		return Telemetry{}, fmt.Errorf("%w: %d < %d bytes", ErrFrameTooShort, len(frame), TelemetrySize)
	}
	t := Telemetry{
		ButtonA: frame[ButtonAOffset],
		ButtonB: frame[ButtonBOffset],
		Shape:   Shape(frame[ShapeOffset]),
	}
	f := frame[FieldsOffset:ShapeOffset]
	switch t.Shape {
	case ShapeEnvironment:
		t.Record = Environment{
			Analog: [3]uint16{
				binary.LittleEndian.Uint16(f[0:2]),
				binary.LittleEndian.Uint16(f[2:4]),
				binary.LittleEndian.Uint16(f[4:6]),
			},
			Heading: binary.LittleEndian.Uint16(f[6:8]),
			Light:   f[8],
		}
	case ShapeMotion:
		var m Motion
		for i := range m.Slots {
			m.Slots[i] = int16(binary.LittleEndian.Uint16(f[2*i : 2*i+2]))
		}
		m.Digital = f[8]
		t.Record = m
	case ShapeInertial:
		t.Record = Inertial{
			Magnetic: binary.LittleEndian.Uint16(f[0:2]),
			Accel: [3]int16{
				int16(binary.LittleEndian.Uint16(f[2:4])),
				int16(binary.LittleEndian.Uint16(f[4:6])),
				int16(binary.LittleEndian.Uint16(f[6:8])),
			},
		}
	}
	return t, nil
}

// EncodeTelemetry builds the frame Decode would turn into t. Bytes outside
// the buttons, fields and shape are zero. t.Shape is used for a nil Record.
func EncodeTelemetry(t Telemetry) []byte {
	frame := make([]byte, TelemetrySize)
	frame[ButtonAOffset] = t.ButtonA
	frame[ButtonBOffset] = t.ButtonB
	frame[ShapeOffset] = byte(t.Shape)
	f := frame[FieldsOffset:ShapeOffset]
	switch r := t.Record.(type) {
	case Environment:
		for i, v := range r.Analog {
			binary.LittleEndian.PutUint16(f[2*i:], v)
		}
		binary.LittleEndian.PutUint16(f[6:], r.Heading)
		f[8] = r.Light
	case Motion:
		for i, v := range r.Slots {
			binary.LittleEndian.PutUint16(f[2*i:], uint16(v))
		}
		f[8] = r.Digital
	case Inertial:
		binary.LittleEndian.PutUint16(f[0:], r.Magnetic)
		for i, v := range r.Accel {
			binary.LittleEndian.PutUint16(f[2+2*i:], uint16(v))
		}
	}
	if t.Record != nil {
		frame[ShapeOffset] = byte(t.Record.Shape())
	}
	return frame
}

// TextCommand scrolls text on the display. Text is cut to MaxTextLength
// characters, characters above U+00FF are sent as '?'.
func TextCommand(text string) Command {
	payload := make([]byte, 0, MaxTextLength)
	for _, r := range text {
		if len(payload) == MaxTextLength {
			break
		}
		if r > 0xff {
			r = '?'
		}
		payload = append(payload, byte(r))
	}
	return Command{Tag: CmdDisplayText, Payload: payload}
}

// MatrixCommand lights the 5x5 display, one 5-bit mask per row.
func MatrixCommand(rows [MatrixRows]uint8) Command {
	payload := make([]byte, MatrixRows)
	for i, r := range rows {
		payload[i] = r & 0x1f
	}
	return Command{Tag: CmdDisplayLED, Payload: payload}
}

// PinPWMCommand sets the PWM duty of pin.
func PinPWMCommand(pin uint8, value uint16) Command {
	payload := make([]byte, 3)
	payload[0] = pin
	binary.LittleEndian.PutUint16(payload[1:], value)
	return Command{Tag: CmdPinPWM, Payload: payload}
}

// SlotCommand writes value to one of the SlotCount generic slots.
func SlotCommand(slot uint8, value int16) Command {
	payload := make([]byte, 3)
	payload[0] = slot
	binary.LittleEndian.PutUint16(payload[1:], uint16(value))
	return Command{Tag: CmdSlotValue, Payload: payload}
}
