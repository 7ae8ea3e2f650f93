package microbit

import "time"

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// MilliG converts a raw accelerometer reading to milli-g.
func MilliG(raw int16) float64 {
	return float64(raw) * 1000 / G
}

// Snapshot is a copy of every cached sensor value at a given time.
type Snapshot struct {
	Time             time.Time
	State            State
	ButtonA          uint8
	ButtonB          uint8
	Matrix           [MatrixRows]uint8
	LightLevel       uint8
	CompassHeading   uint16
	MagneticStrength uint16
	Acceleration     [3]float64 // milli-g
	Analog           map[int]uint16
	Digital          map[int]uint8
	Slots            [SlotCount]int16
}

// Sensors caches the last value received for every telemetry field.
// It stores raw device units and is not safe for concurrent use.
type Sensors struct {
	pins PinMap

	buttonA  uint8
	buttonB  uint8
	matrix   [MatrixRows]uint8
	light    uint8
	heading  uint16
	magnetic uint16
	accel    [3]int16
	analog   map[int]uint16
	digital  map[int]uint8
	slots    [SlotCount]int16
}

func NewSensors(pins PinMap) *Sensors {
	s := &Sensors{pins: pins.clone()}
	s.Reset()
	return s
}

// Reset puts every field back to its zero value.
func (s *Sensors) Reset() {
	*s = Sensors{
		pins:    s.pins,
		analog:  make(map[int]uint16, len(s.pins.Analog)),
		digital: make(map[int]uint8, len(s.pins.Digital)),
	}
	for _, p := range s.pins.Analog {
		s.analog[p] = 0
	}
	for _, p := range s.pins.Digital {
		s.digital[p] = 0
	}
}

// Update merges t into the cache. Only the fields of t's shape are
// written, everything else keeps its previous value.
func (s *Sensors) Update(t Telemetry) {
	s.buttonA = t.ButtonA
	s.buttonB = t.ButtonB
	switch r := t.Record.(type) {
	case Environment:
		for i, p := range s.pins.Analog {
			s.analog[p] = r.Analog[i]
		}
		s.heading = r.Heading
		s.light = r.Light
	case Motion:
		s.slots = r.Slots
		for i, p := range s.pins.Digital {
			s.digital[p] = r.Bit(i)
		}
	case Inertial:
		s.magnetic = r.Magnetic
		s.accel = r.Accel
	}
}

func (s *Sensors) ButtonA() uint8 { return s.buttonA }
func (s *Sensors) ButtonB() uint8 { return s.buttonB }

func (s *Sensors) Matrix() [MatrixRows]uint8 { return s.matrix }

func (s *Sensors) SetMatrix(rows [MatrixRows]uint8) {
	for i, r := range rows {
		s.matrix[i] = r & 0x1f
	}
}

func (s *Sensors) LightLevel() uint8        { return s.light }
func (s *Sensors) CompassHeading() uint16   { return s.heading }
func (s *Sensors) MagneticStrength() uint16 { return s.magnetic }

// RawAcceleration returns the cached reading of axis in device units.
func (s *Sensors) RawAcceleration(axis Axis) int16 {
	if axis < AxisX || axis > AxisZ {
		return 0
	}
	return s.accel[axis]
}

// Acceleration returns the reading of axis in milli-g.
func (s *Sensors) Acceleration(axis Axis) float64 {
	return MilliG(s.RawAcceleration(axis))
}

// AnalogValue returns the last reading of pin, false if pin isn't
// an analog input of the pin map.
func (s *Sensors) AnalogValue(pin int) (uint16, bool) {
	v, ok := s.analog[pin]
	return v, ok
}

// DigitalValue returns the last level of pin, false if pin isn't
// a digital pin of the pin map.
func (s *Sensors) DigitalValue(pin int) (uint8, bool) {
	v, ok := s.digital[pin]
	return v, ok
}

// Slot returns the value of slot i, 0 when i is out of range.
func (s *Sensors) Slot(i int) int16 {
	if i < 0 || i >= SlotCount {
		return 0
	}
	return s.slots[i]
}

func (s *Sensors) SetSlot(i int, v int16) {
	if i < 0 || i >= SlotCount {
		return
	}
	s.slots[i] = v
}

// fill copies the cache into sn.
func (s *Sensors) fill(sn *Snapshot) {
	sn.ButtonA = s.buttonA
	sn.ButtonB = s.buttonB
	sn.Matrix = s.matrix
	sn.LightLevel = s.light
	sn.CompassHeading = s.heading
	sn.MagneticStrength = s.magnetic
	for i := range s.accel {
		sn.Acceleration[i] = MilliG(s.accel[i])
	}
	sn.Analog = make(map[int]uint16, len(s.analog))
	for k, v := range s.analog {
		sn.Analog[k] = v
	}
	sn.Digital = make(map[int]uint8, len(s.digital))
	for k, v := range s.digital {
		sn.Digital[k] = v
	}
	sn.Slots = s.slots
}
