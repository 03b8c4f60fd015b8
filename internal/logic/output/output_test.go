package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/testutil"
)

type fakeFormat struct{ id string }

func (f fakeFormat) ID() string          { return f.id }
func (f fakeFormat) Description() string { return "fake" }
func (f fakeFormat) NewEncoder(dev *device.Device, param string) (Encoder, error) {
	return nil, nil
}

func TestFormatRegistry(t *testing.T) {
	f, ok := Lookup("hex")
	require.True(t, ok)
	assert.Equal(t, "hex", f.ID())
	assert.Equal(t, "Hexadecimal digits", f.Description())

	_, ok = Lookup("does-not-exist")
	assert.False(t, ok)

	var ids []string
	for _, f := range Formats() {
		ids = append(ids, f.ID())
	}
	assert.Contains(t, ids, "hex")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	Register(fakeFormat{id: "fake-dup"})
	assert.Panics(t, func() { Register(fakeFormat{id: "fake-dup"}) })
	assert.Panics(t, func() { Register(nil) })
}

func TestLogicChannels(t *testing.T) {
	t.Parallel()

	_, err := LogicChannels(nil)
	assert.ErrorIs(t, err, logic.ErrArgument)

	dev := device.New("acme", "la-test", "1.0")
	dev.AddChannel(0, logic.ChannelLogic, "D0")
	dev.AddChannel(1, logic.ChannelAnalog, "A0")
	dev.AddChannel(2, logic.ChannelLogic, "D2")
	dev.AddChannel(3, logic.ChannelLogic, "D3")
	require.NoError(t, dev.EnableChannel(2, false))

	sel, err := LogicChannels(dev)
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, "D0", sel[0].Name)
	assert.Equal(t, 0, sel[0].Index)
	assert.Equal(t, "D3", sel[1].Name)
	assert.Equal(t, 3, sel[1].Index)

	// The selection is a copy: later device edits do not leak in.
	require.NoError(t, dev.SetChannelName(0, "RENAMED"))
	assert.Equal(t, "D0", sel[0].Name)
}

func TestNewOutput(t *testing.T) {
	t.Parallel()

	dev := device.New("acme", "la-test", "1.0")
	dev.AddChannel(0, logic.ChannelLogic, "D0")

	_, err := New("does-not-exist", dev, "")
	assert.ErrorIs(t, err, logic.ErrArgument)

	_, err = New("hex", nil, "")
	assert.ErrorIs(t, err, logic.ErrArgument)

	_, err = New("hex", dev, "bogus")
	assert.ErrorIs(t, err, logic.ErrArgument)

	out, err := New("hex", dev, "8")
	require.NoError(t, err)
	assert.Equal(t, "hex", out.Format().ID())

	chunk, err := out.Send(logic.NewLogicPacket(testutil.Bytes(0x01, 8), 1))
	require.NoError(t, err)
	assert.Equal(t, banner()+"D0:ff \n", string(chunk))
}
