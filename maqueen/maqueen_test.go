package maqueen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar3s/gomore/microbit"
)

type fakeBit struct {
	slots   [microbit.SlotCount]int16
	matrix  [microbit.MatrixRows]uint8
	text    []string
	buttons [2]uint8
}

func accepted() *microbit.Ticket {
	return &microbit.Ticket{Status: microbit.Accepted}
}

func (f *fakeBit) SetSlot(slot int, value int16) *microbit.Ticket {
	f.slots[slot] = value
	return accepted()
}

func (f *fakeBit) Slot(i int) int16 { return f.slots[i] }

func (f *fakeBit) DisplayText(text string) *microbit.Ticket {
	f.text = append(f.text, text)
	return accepted()
}

func (f *fakeBit) DisplayMatrix(rows [microbit.MatrixRows]uint8) *microbit.Ticket {
	f.matrix = rows
	return accepted()
}

func (f *fakeBit) ButtonA() uint8 { return f.buttons[0] }
func (f *fakeBit) ButtonB() uint8 { return f.buttons[1] }

func TestBools(t *testing.T) {
	tests := []struct {
		v int16
		b [4]bool
	}{
		{0, [4]bool{}},
		{15, [4]bool{true, true, true, true}},
		{8, [4]bool{LedLeft: true}},
		{4, [4]bool{LedRight: true}},
		{2, [4]bool{PatrolLeft: true}},
		{5, [4]bool{LedRight: true, PatrolRight: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.b, SplitBools(tt.v), "split %d", tt.v)
		assert.Equal(t, tt.v, JoinBools(tt.b), "join %v", tt.b)
	}
	// out of range values light the left LED, the rest reads modulo 8
	assert.Equal(t, [4]bool{true, false, false, false}, SplitBools(16))
	assert.Equal(t, [4]bool{true, false, true, true}, SplitBools(19))
	assert.Equal(t, [4]bool{true, true, true, true}, SplitBools(-1))
	assert.Equal(t, [4]bool{true, true, true, true}, SplitBools(-9))
}

func TestSymbol(t *testing.T) {
	rows, err := Symbol(`
		01010
		11111
		11111
		01110
		00100`)
	require.NoError(t, err)
	assert.Equal(t, [microbit.MatrixRows]uint8{0x0a, 0x1f, 0x1f, 0x0e, 0x04}, rows)

	rows, err = Symbol("1000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, [microbit.MatrixRows]uint8{0x01, 0, 0, 0, 0x10}, rows)

	_, err = Symbol("0101")
	assert.ErrorIs(t, err, ErrSymbol)
	_, err = Symbol("01010 11111 11111 01110 0010x")
	assert.ErrorIs(t, err, ErrSymbol)
}

func TestRobot_Motor(t *testing.T) {
	f := &fakeBit{}
	r := New(f)

	assert.True(t, r.Motor(Left, -255).Accepted())
	assert.True(t, r.Motor(Right, 120).Accepted())
	assert.Equal(t, int16(-255), r.Speed(Left))
	assert.Equal(t, int16(120), r.Speed(Right))

	tk := r.Motor(Left, 256)
	assert.Equal(t, microbit.Rejected, tk.Status)
	assert.Error(t, tk.Err)
	assert.Equal(t, microbit.Rejected, r.Motor(Side(4), 0).Status)
	assert.Equal(t, int16(-255), f.slots[SlotMotorLeft])
}

func TestRobot_Flags(t *testing.T) {
	f := &fakeBit{}
	f.slots[SlotFlags] = 2 // patrol left
	f.slots[SlotDistance] = 37
	r := New(f)

	assert.True(t, r.Patrol(Left))
	assert.False(t, r.Patrol(Right))
	assert.Equal(t, int16(37), r.Distance())

	require.True(t, r.SetLED(Right, true).Accepted())
	assert.Equal(t, int16(6), f.slots[SlotFlags])
	assert.True(t, r.LED(Right))
	assert.False(t, r.LED(Left))

	require.True(t, r.SetLED(Right, false).Accepted())
	assert.Equal(t, int16(2), f.slots[SlotFlags])

	st := r.Status()
	assert.True(t, st.PatrolLeft)
	assert.Equal(t, int16(37), st.Distance)
}

func TestRobot_Display(t *testing.T) {
	f := &fakeBit{}
	r := New(f)

	assert.ErrorIs(t, r.DisplayText("").Err, ErrEmptyText)
	assert.Empty(t, f.text)
	assert.True(t, r.DisplayText("go").Accepted())
	assert.Equal(t, []string{"go"}, f.text)

	assert.True(t, r.DisplaySymbol("1111111111111111111111111").Accepted())
	assert.Equal(t, [microbit.MatrixRows]uint8{0x1f, 0x1f, 0x1f, 0x1f, 0x1f}, f.matrix)
	assert.Equal(t, microbit.Rejected, r.DisplaySymbol("nope").Status)

	assert.True(t, r.DisplayClear().Accepted())
	assert.Equal(t, [microbit.MatrixRows]uint8{}, f.matrix)
}

func TestRobot_Pressed(t *testing.T) {
	f := &fakeBit{}
	r := New(f)
	assert.False(t, r.Pressed(Any))

	f.buttons[1] = 1
	assert.False(t, r.Pressed(ButtonA))
	assert.True(t, r.Pressed(ButtonB))
	assert.True(t, r.Pressed(Any))
}

func TestRobot_Driver(t *testing.T) {
	d, err := microbit.NewDriver(microbit.NewSimulator(nil), nil)
	require.NoError(t, err)
	r := New(d)

	assert.Equal(t, microbit.NotConnected, r.Motor(Left, 10).Status)
	assert.Equal(t, int16(0), r.Speed(Left))
}

func TestSideMarshallers(t *testing.T) {
	var req struct {
		Side   Side
		Button Button
	}
	require.NoError(t, json.Unmarshal([]byte(`{"Side":"Right","Button":"any"}`), &req))
	assert.Equal(t, Right, req.Side)
	assert.Equal(t, Any, req.Button)
	assert.Error(t, json.Unmarshal([]byte(`{"Side":"up"}`), &req))

	b, err := json.Marshal(Left)
	require.NoError(t, err)
	assert.Equal(t, `"left"`, string(b))
}
