package microbit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func TestParseUUID(t *testing.T) {
	u, err := parseUUID(ServiceID)
	require.NoError(t, err)
	assert.Equal(t, bluetooth.New16BitUUID(0xf005), u)

	u, err = parseUUID(TxCharUUID)
	require.NoError(t, err)
	assert.Equal(t, TxCharUUID, u.String())

	_, err = parseUUID("zzzz")
	assert.Error(t, err)
}

func TestBLEConnection_NotConnected(t *testing.T) {
	bc := &BLEConnection{}
	assert.False(t, bc.IsConnected())
	assert.ErrorIs(t, <-bc.Write(ServiceID, TxCharUUID, []byte{0x92, 0, 0, 0}, true), ErrNotConnected)
	assert.ErrorIs(t, bc.Read(ServiceID, RxCharUUID, func([]byte) {}), ErrNotConnected)
	assert.ErrorIs(t, bc.Disconnect(), ErrNotConnected)
}
