package microbit

import "fmt"

// PinMap names the edge connector pins carried by telemetry frames.
// Analog lists the pins of the three analog readings of environment frames,
// Digital lists, in bit order, the pins of the packed byte of motion frames.
type PinMap struct {
	Analog  []int
	Digital []int
}

// DefaultPinMap matches the stock More firmware.
var DefaultPinMap = PinMap{
	Analog:  []int{0, 1, 2},
	Digital: []int{0, 1, 2, 8, 13, 14, 15, 16},
}

func (pm PinMap) Validate() error {
	if len(pm.Analog) != 3 {
		return fmt.Errorf("%w: need 3 analog pins, got %d", ErrInvalidPinMap, len(pm.Analog))
	}
	if len(pm.Digital) == 0 || len(pm.Digital) > 8 {
		return fmt.Errorf("%w: need 1 to 8 digital pins, got %d", ErrInvalidPinMap, len(pm.Digital))
	}
	for _, pins := range [][]int{pm.Analog, pm.Digital} {
		seen := make(map[int]bool, len(pins))
		for _, p := range pins {
			if p < 0 {
				return fmt.Errorf("%w: negative pin %d", ErrInvalidPinMap, p)
			}
			if seen[p] {
				return fmt.Errorf("%w: pin %d listed twice", ErrInvalidPinMap, p)
			}
			seen[p] = true
		}
	}
	return nil
}

func (pm PinMap) clone() PinMap {
	return PinMap{
		Analog:  append([]int(nil), pm.Analog...),
		Digital: append([]int(nil), pm.Digital...),
	}
}
