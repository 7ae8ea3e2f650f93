package microbit

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Pacing returns how long the peripheral needs to act on a command.
// Scrolling text takes ScrollDelay per display column: 6 columns per
// character, 1 before and 5 after the text. Anything else takes SendInterval.
// It is a sequencing hint for callers, unrelated to acknowledgment.
func Pacing(tag Tag, payload []byte) time.Duration {
	if tag == CmdDisplayText {
		return ScrollDelay * time.Duration(6*len(payload)+6)
	}
	return SendInterval
}

// Ticket is the outcome of a Send.
type Ticket struct {
	Status Status
	Err    error         // nil when Accepted
	Pace   time.Duration // advisory delay before the next command

	clock clock.Clock
}

func (t *Ticket) Accepted() bool {
	return t != nil && t.Status == Accepted
}

// Wait returns t.Err right away for a command that wasn't accepted,
// otherwise it sleeps for t.Pace or until ctx is done.
func (t *Ticket) Wait(ctx context.Context) error {
	if !t.Accepted() {
		if t == nil {
			return ErrNotConnected
		}
		return t.Err
	}
	if t.Pace <= 0 {
		return nil
	}
	clk := t.clock
	if clk == nil {
		clk = clock.New()
	}
	timer := clk.Timer(t.Pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
