// Package wire implements the bidirectional codec for the mixrack's
// MIDI-over-TCP dialect: decoding a streaming sequence of MIDI messages
// into a strongly-typed Message sum, and encoding outgoing commands.
// Grounded on original_source/dlive/encoding.py, with message
// construction/parsing delegated to gitlab.com/gomidi/midi/v2, the same
// way arpad/devices.MidiDevice builds and inspects midi.Message values.
package wire

import "github.com/m-vo/psurface/internal/channel"

// Message is the decoded sum type. Implementations are sealed to this
// package via the unexported message() method.
type Message interface {
	message()
}

type SceneMsg struct {
	Scene channel.Scene
}

type LabelMsg struct {
	Channel channel.ChannelIdentifier
	Label   channel.Label
}

type ColourMsg struct {
	Channel channel.ChannelIdentifier
	Colour  channel.Colour
}

type MuteMsg struct {
	Channel channel.ChannelIdentifier
	On      bool
}

type LevelMsg struct {
	Channel channel.ChannelIdentifier
	Level   channel.Level
}

type SendLevelMsg struct {
	From  channel.ChannelIdentifier
	To    channel.ChannelIdentifier
	Level channel.Level
}

// UnknownSysexMsg is produced for any sysex the decoder cannot interpret
// confidently, including both firmware quirks' ambiguous cases. The
// decoder never aborts on a bad frame; it always yields this instead.
type UnknownSysexMsg struct {
	Bytes  []byte
	Reason string
}

func (SceneMsg) message()        {}
func (LabelMsg) message()        {}
func (ColourMsg) message()       {}
func (MuteMsg) message()         {}
func (LevelMsg) message()        {}
func (SendLevelMsg) message()    {}
func (UnknownSysexMsg) message() {}
