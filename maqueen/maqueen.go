// Package maqueen drives a DFRobot Maqueen robot through a micro:bit running
// the More firmware with the Maqueen program, which exchanges the robot's
// state over the four generic slots:
//
//   slot 0: left motor speed, -255 (backward) to 255 (forward)
//   slot 1: right motor speed
//   slot 2: distance to the obstacle ahead, in cm
//   slot 3: packed flags, ledLeft(8) | ledRight(4) | patrolLeft(2) | patrolRight(1)
package maqueen

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/solar3s/gomore/microbit"
)

const (
	SlotMotorLeft = iota
	SlotMotorRight
	SlotDistance
	SlotFlags
)

const MaxSpeed = 255

// Flag indexes in the result of SplitBools, most significant first.
const (
	LedLeft = iota
	LedRight
	PatrolLeft
	PatrolRight
)

var (
	ErrEmptyText = errors.New("empty text")
	ErrSymbol    = errors.New("invalid symbol")
)

// Peripheral is the part of *microbit.Driver used by Robot.
type Peripheral interface {
	SetSlot(slot int, value int16) *microbit.Ticket
	Slot(i int) int16
	DisplayText(text string) *microbit.Ticket
	DisplayMatrix(rows [microbit.MatrixRows]uint8) *microbit.Ticket
	ButtonA() uint8
	ButtonB() uint8
}

// SplitBools unpacks the flags slot. Anything outside [0, 8) turns the
// left LED on, the other flags read the value modulo 8.
func SplitBools(v int16) [4]bool {
	var b [4]bool
	b[LedLeft] = v>>3 != 0
	for i := 1; i < len(b); i++ {
		b[i] = v&(8>>uint(i)) != 0
	}
	return b
}

// JoinBools packs b into a flags slot value.
func JoinBools(b [4]bool) int16 {
	var v int16
	for i, on := range b {
		if on {
			v |= 8 >> uint(i)
		}
	}
	return v
}

// Symbol parses a 5x5 picture, row after row, '1' for a lit LED and '0'
// for an unlit one. White space is ignored.
func Symbol(s string) ([microbit.MatrixRows]uint8, error) {
	var rows [microbit.MatrixRows]uint8
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(s) != 5*microbit.MatrixRows {
		return rows, fmt.Errorf("%w: need %d leds, got %d", ErrSymbol, 5*microbit.MatrixRows, len(s))
	}
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			rows[i/5] |= 1 << uint(i%5)
		default:
			return rows, fmt.Errorf("%w: unexpected %q", ErrSymbol, c)
		}
	}
	return rows, nil
}

// Status is the robot's state as last reported.
type Status struct {
	Speed       [2]int16 // left, right
	Distance    int16    // cm
	LedLeft     bool
	LedRight    bool
	PatrolLeft  bool
	PatrolRight bool
	ButtonA     bool
	ButtonB     bool
}

type Robot struct {
	p Peripheral
}

func New(p Peripheral) *Robot {
	return &Robot{p: p}
}

func rejected(err error) *microbit.Ticket {
	return &microbit.Ticket{Status: microbit.Rejected, Err: err}
}

// Motor sets the speed of one side, negative values run backward.
func (r *Robot) Motor(side Side, speed int) *microbit.Ticket {
	if speed < -MaxSpeed || speed > MaxSpeed {
		return rejected(fmt.Errorf("speed %d out of range [-%d, %d]", speed, MaxSpeed, MaxSpeed))
	}
	slot, err := side.motorSlot()
	if err != nil {
		return rejected(err)
	}
	return r.p.SetSlot(slot, int16(speed))
}

func (r *Robot) Speed(side Side) int16 {
	slot, err := side.motorSlot()
	if err != nil {
		return 0
	}
	return r.p.Slot(slot)
}

// Distance returns the ultrasonic range in cm.
func (r *Robot) Distance() int16 {
	return r.p.Slot(SlotDistance)
}

// Patrol reports whether the line sensor of side sees the line.
func (r *Robot) Patrol(side Side) bool {
	b := SplitBools(r.p.Slot(SlotFlags))
	if side == Left {
		return b[PatrolLeft]
	}
	return b[PatrolRight]
}

func (r *Robot) LED(side Side) bool {
	b := SplitBools(r.p.Slot(SlotFlags))
	if side == Left {
		return b[LedLeft]
	}
	return b[LedRight]
}

// SetLED switches a head LED, keeping the other flags as last reported.
func (r *Robot) SetLED(side Side, on bool) *microbit.Ticket {
	b := SplitBools(r.p.Slot(SlotFlags))
	switch side {
	case Left:
		b[LedLeft] = on
	case Right:
		b[LedRight] = on
	default:
		return rejected(fmt.Errorf("invalid side %s", side))
	}
	return r.p.SetSlot(SlotFlags, JoinBools(b))
}

// DisplayText scrolls text, use the ticket's Wait to let it finish.
func (r *Robot) DisplayText(text string) *microbit.Ticket {
	if text == "" {
		return rejected(ErrEmptyText)
	}
	return r.p.DisplayText(text)
}

func (r *Robot) DisplaySymbol(symbol string) *microbit.Ticket {
	rows, err := Symbol(symbol)
	if err != nil {
		return rejected(err)
	}
	return r.p.DisplayMatrix(rows)
}

func (r *Robot) DisplayClear() *microbit.Ticket {
	return r.p.DisplayMatrix([microbit.MatrixRows]uint8{})
}

// Pressed reports whether b is held down.
func (r *Robot) Pressed(b Button) bool {
	switch b {
	case ButtonA:
		return r.p.ButtonA() != 0
	case ButtonB:
		return r.p.ButtonB() != 0
	case Any:
		return r.p.ButtonA()|r.p.ButtonB() != 0
	}
	return false
}

func (r *Robot) Status() Status {
	b := SplitBools(r.p.Slot(SlotFlags))
	return Status{
		Speed:       [2]int16{r.p.Slot(SlotMotorLeft), r.p.Slot(SlotMotorRight)},
		Distance:    r.p.Slot(SlotDistance),
		LedLeft:     b[LedLeft],
		LedRight:    b[LedRight],
		PatrolLeft:  b[PatrolLeft],
		PatrolRight: b[PatrolRight],
		ButtonA:     r.p.ButtonA() != 0,
		ButtonB:     r.p.ButtonB() != 0,
	}
}
