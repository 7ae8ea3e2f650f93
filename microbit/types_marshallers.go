package microbit

import (
	"fmt"
	"strconv"
	"strings"
)

// This file contains (un)marshallers for the enum types of the driver,
// allowing front-ends and config files to use names instead of numbers.

var stateNames = []string{"Disconnected", "Connected", "Stale", "NilDriver"}

var statusNames = []string{"Accepted", "Busy", "NotConnected", "Rejected"}

var axisNames = []string{"x", "y", "z"}

func enumString(names []string, typ string, i int) string {
	if i < 0 || i >= len(names) {
		return typ + "(" + strconv.Itoa(i) + ")"
	}
	return names[i]
}

// enumParse accepts a name (case insensitive) or its number.
func enumParse(names []string, typ string, b []byte) (int, error) {
	str := string(b)
	for i, name := range names {
		if strings.EqualFold(name, str) {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(str); err == nil && i >= 0 && i < len(names) {
		return i, nil
	}
	return 0, fmt.Errorf("cannot unmarshal %q to %s, is it misspelled?", str, typ)
}

// ---- type State int

func (s State) String() string { return enumString(stateNames, "State", int(s)) }

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	i, err := enumParse(stateNames, "State", b)
	if err == nil {
		*s = State(i)
	}
	return err
}

// ---- type Status int

func (s Status) String() string { return enumString(statusNames, "Status", int(s)) }

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	i, err := enumParse(statusNames, "Status", b)
	if err == nil {
		*s = Status(i)
	}
	return err
}

// ---- type Axis int

func (a Axis) String() string { return enumString(axisNames, "Axis", int(a)) }

func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	i, err := enumParse(axisNames, "Axis", b)
	if err == nil {
		*a = Axis(i)
	}
	return err
}

// ---- type Shape byte

func (s Shape) String() string {
	switch s {
	case ShapeEnvironment:
		return "Environment"
	case ShapeMotion:
		return "Motion"
	case ShapeInertial:
		return "Inertial"
	}
	return fmt.Sprintf("Shape(0x%02x)", byte(s))
}

// ---- type Tag byte

func (t Tag) String() string {
	switch t {
	case CmdDisplayText:
		return "DisplayText"
	case CmdDisplayLED:
		return "DisplayLED"
	case CmdPinPWM:
		return "PinPWM"
	case CmdSlotValue:
		return "SlotValue"
	}
	return fmt.Sprintf("Tag(0x%02x)", byte(t))
}
