package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-vo/psurface/internal/channel"
)

func sysexBytes(body ...byte) []byte {
	full := []byte{0xF0}
	full = append(full, Header...)
	full = append(full, body...)
	full = append(full, 0xF7)
	return full
}

func TestDecoder_SceneRecallRoundTrip(t *testing.T) {
	enc := NewEncoder(0)
	out, err := enc.RecallScene(100)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB0, 0x00, 0x00, 0xC0, 0x64}, out)

	dec := NewDecoder(0)
	msg, ok := dec.Feed(out[:3])
	assert.False(t, ok)
	assert.Nil(t, msg)
	msg, ok = dec.Feed(out[3:])
	require.True(t, ok)
	assert.Equal(t, SceneMsg{Scene: 100}, msg)
}

func TestDecoder_SetMuteRoundTrip(t *testing.T) {
	enc := NewEncoder(0)
	input0 := channel.New(channel.Input, 0)
	out, err := enc.SetMute(input0, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00, 0x7F, 0x00, 0x00}, out)

	// The second note-on arrives in running-status form; the session's
	// midiListener restores its status byte before the decoder sees it.
	dec := NewDecoder(0)
	dec.Feed(out[:3])
	msg, ok := dec.Feed([]byte{out[0], out[3], out[4]})
	require.True(t, ok)
	assert.Equal(t, MuteMsg{Channel: input0, On: true}, msg)
}

func TestDecoder_SendLevelShortFormSynthesizesBankByte(t *testing.T) {
	short := sysexBytes(0x00, 0x0D, 0x00, 0x00, 0x6B)
	long := sysexBytes(0x00, 0x0D, 0x00, 0x00, 0x00, 0x6B)

	decShort := NewDecoder(0)
	msgShort, ok := decShort.Feed(short)
	require.True(t, ok)

	decLong := NewDecoder(0)
	msgLong, ok := decLong.Feed(long)
	require.True(t, ok)

	assert.Equal(t, msgLong, msgShort)
	assert.Equal(t, SendLevelMsg{
		From:  channel.New(channel.Input, 0),
		To:    channel.New(channel.Input, 0),
		Level: channel.Level(0x6B),
	}, msgShort)
}

func TestDecoder_ColourVsMuteEchoAmbiguity(t *testing.T) {
	raw := sysexBytes(0x00, 0x05, 0x09, 0x03)

	decOff := NewDecoder(0)
	msg, ok := decOff.Feed(raw)
	require.True(t, ok)
	assert.Equal(t, ColourMsg{Channel: channel.New(channel.Input, 9), Colour: channel.Yellow}, msg)

	decOn := NewDecoder(0)
	decOn.SetQuirksMode(true)
	msg, ok = decOn.Feed(raw)
	require.True(t, ok)
	unknown, isUnknown := msg.(UnknownSysexMsg)
	require.True(t, isUnknown)
	assert.Contains(t, unknown.Reason, "ambiguous")
}

func TestDecoder_LabelSetEncodesAndReportDecodes(t *testing.T) {
	enc := NewEncoder(0)
	ch := channel.New(channel.Input, 2)
	out, err := enc.SetLabel(ch, channel.NewLabel("Vocal"))
	require.NoError(t, err)
	assert.Equal(t, sysexBytes(0x00, 0x03, 0x02, 'V', 'o', 'c', 'a', 'l'), out)

	// The console always reports labels with cmd 0x02, regardless of how
	// they were set (0x03) or requested (0x01), so the set command does
	// not decode back as-is; decode the report the console sends instead.
	report := sysexBytes(0x00, 0x02, 0x02, 'V', 'o', 'c', 'a', 'l')

	dec := NewDecoder(0)
	msg, ok := dec.Feed(report)
	require.True(t, ok)
	assert.Equal(t, LabelMsg{Channel: ch, Label: channel.Label("Vocal")}, msg)
}
