package microbit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensors_UpdateMergesShape(t *testing.T) {
	s := NewSensors(DefaultPinMap)

	s.Update(Telemetry{Record: Environment{Analog: [3]uint16{1, 2, 3}, Heading: 180, Light: 42}})
	s.Update(Telemetry{Record: Inertial{Magnetic: 300, Accel: [3]int16{1024, 0, -512}}})

	// environment values survive an inertial frame
	assert.Equal(t, uint8(42), s.LightLevel())
	assert.Equal(t, uint16(180), s.CompassHeading())
	v, ok := s.AnalogValue(2)
	assert.True(t, ok)
	assert.Equal(t, uint16(3), v)

	assert.Equal(t, uint16(300), s.MagneticStrength())
	assert.Equal(t, int16(1024), s.RawAcceleration(AxisX))
	assert.Equal(t, 1000.0, s.Acceleration(AxisX))
	assert.Equal(t, 0.0, s.Acceleration(AxisY))
	assert.Equal(t, -500.0, s.Acceleration(AxisZ))
	assert.Equal(t, 0.0, s.Acceleration(Axis(5)))
}

func TestSensors_Buttons(t *testing.T) {
	s := NewSensors(DefaultPinMap)
	s.Update(Telemetry{ButtonA: 1, Record: Environment{Light: 9}})
	assert.Equal(t, uint8(1), s.ButtonA())
	assert.Equal(t, uint8(0), s.ButtonB())

	// unknown shapes still carry buttons
	s.Update(Telemetry{ButtonB: 1, Shape: Shape(0x09)})
	assert.Equal(t, uint8(0), s.ButtonA())
	assert.Equal(t, uint8(1), s.ButtonB())
	assert.Equal(t, uint8(9), s.LightLevel())
}

func TestSensors_Digital(t *testing.T) {
	s := NewSensors(DefaultPinMap)
	// bits 0, 3 and 7: pins 0, 8 and 16
	s.Update(Telemetry{Record: Motion{Digital: 0x89, Slots: [SlotCount]int16{1, -2, 3, 4}}})

	for pin, want := range map[int]uint8{0: 1, 1: 0, 2: 0, 8: 1, 13: 0, 14: 0, 15: 0, 16: 1} {
		v, ok := s.DigitalValue(pin)
		assert.True(t, ok, "pin %d", pin)
		assert.Equal(t, want, v, "pin %d", pin)
	}
	_, ok := s.DigitalValue(3)
	assert.False(t, ok)
	_, ok = s.AnalogValue(8)
	assert.False(t, ok)

	assert.Equal(t, int16(-2), s.Slot(1))
	assert.Equal(t, int16(0), s.Slot(SlotCount))
}

func TestSensors_CustomPinMap(t *testing.T) {
	s := NewSensors(PinMap{Analog: []int{3, 4, 10}, Digital: []int{5, 11}})
	s.Update(Telemetry{Record: Environment{Analog: [3]uint16{7, 8, 9}}})
	s.Update(Telemetry{Record: Motion{Digital: 0x02}})

	v, ok := s.AnalogValue(10)
	assert.True(t, ok)
	assert.Equal(t, uint16(9), v)
	d, ok := s.DigitalValue(11)
	assert.True(t, ok)
	assert.Equal(t, uint8(1), d)
	_, ok = s.DigitalValue(0)
	assert.False(t, ok)
}

func TestSensors_Reset(t *testing.T) {
	s := NewSensors(DefaultPinMap)
	s.Update(Telemetry{ButtonA: 1, Record: Environment{Analog: [3]uint16{5, 5, 5}, Light: 1}})
	s.Update(Telemetry{Record: Motion{Digital: 0xff}})
	s.SetMatrix([MatrixRows]uint8{0xff, 1, 2, 3, 4})
	s.SetSlot(3, 99)
	assert.Equal(t, uint8(0x1f), s.Matrix()[0])
	assert.Equal(t, int16(99), s.Slot(3))

	s.Reset()
	var sn Snapshot
	s.fill(&sn)
	assert.Equal(t, uint8(0), sn.ButtonA)
	assert.Equal(t, uint8(0), sn.LightLevel)
	assert.Equal(t, [MatrixRows]uint8{}, sn.Matrix)
	assert.Equal(t, [SlotCount]int16{}, sn.Slots)
	assert.Equal(t, map[int]uint16{0: 0, 1: 0, 2: 0}, sn.Analog)
	assert.Len(t, sn.Digital, 8)
	for pin, v := range sn.Digital {
		assert.Equal(t, uint8(0), v, "pin %d", pin)
	}
}

func TestMilliG(t *testing.T) {
	assert.Equal(t, 1000.0, MilliG(1024))
	assert.Equal(t, 0.0, MilliG(0))
	assert.Equal(t, -500.0, MilliG(-512))
	assert.InDelta(t, 0.9765625, MilliG(1), 1e-9)
}
