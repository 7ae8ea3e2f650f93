package maqueen

import (
	"fmt"
	"strings"
)

type Side int

const (
	Left Side = iota
	Right
)

type Button int

const (
	ButtonA Button = iota
	ButtonB
	Any
)

var sideNames = []string{"left", "right"}

var buttonNames = []string{"A", "B", "any"}

func name(names []string, typ string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("%s(%d)", typ, i)
	}
	return names[i]
}

func parse(names []string, typ string, b []byte) (int, error) {
	for i, n := range names {
		if strings.EqualFold(n, string(b)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("cannot unmarshal %q to %s, want one of %s", b, typ, strings.Join(names, ", "))
}

func (s Side) motorSlot() (int, error) {
	switch s {
	case Left:
		return SlotMotorLeft, nil
	case Right:
		return SlotMotorRight, nil
	}
	return 0, fmt.Errorf("invalid side %s", s)
}

// ---- type Side int

func (s Side) String() string { return name(sideNames, "Side", int(s)) }

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	i, err := parse(sideNames, "Side", b)
	if err == nil {
		*s = Side(i)
	}
	return err
}

// ---- type Button int

func (b Button) String() string { return name(buttonNames, "Button", int(b)) }

func (b Button) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Button) UnmarshalText(text []byte) error {
	i, err := parse(buttonNames, "Button", text)
	if err == nil {
		*b = Button(i)
	}
	return err
}
