package wire

import (
	"fmt"

	midi "gitlab.com/gomidi/midi/v2"

	"github.com/m-vo/psurface/internal/channel"
)

// Encoder builds outgoing command bytes for the configured MIDI bank
// offset B (spec §6). B is added to every bank_offset and used as the
// MIDI channel nibble for control-change/program-change/note messages.
type Encoder struct {
	BankOffset byte
}

func NewEncoder(bankOffset byte) *Encoder {
	return &Encoder{BankOffset: bankOffset}
}

func (e *Encoder) addr(c channel.ChannelIdentifier) (bo, co byte, err error) {
	bo, co, err = c.ToWire()
	if err != nil {
		return 0, 0, err
	}
	return e.BankOffset + bo, co, nil
}

func (e *Encoder) sysex(body ...byte) []byte {
	full := make([]byte, 0, len(Header)+len(body))
	full = append(full, Header...)
	full = append(full, body...)
	return midi.SysEx(full)
}

// RecallScene encodes a scene-recall command. Rejects scenes outside
// [0, 499].
func (e *Encoder) RecallScene(s channel.Scene) ([]byte, error) {
	if s < 0 || s > 499 {
		return nil, fmt.Errorf("wire: scene %d out of range [0,499]", int(s))
	}
	out := append([]byte{}, midi.ControlChange(e.BankOffset, 0x00, s.Bank())...)
	out = append(out, midi.ProgramChange(e.BankOffset, s.Offset())...)
	return out, nil
}

func (e *Encoder) SetLabel(c channel.ChannelIdentifier, label channel.Label) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	body := append([]byte{boB, 0x03, co}, []byte(label)...)
	return e.sysex(body...), nil
}

func (e *Encoder) RequestLabel(c channel.ChannelIdentifier) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	return e.sysex(boB, 0x01, co), nil
}

func (e *Encoder) SetColour(c channel.ChannelIdentifier, col channel.Colour) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	return e.sysex(boB, 0x06, co, byte(col)), nil
}

func (e *Encoder) RequestColour(c channel.ChannelIdentifier) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	return e.sysex(boB, 0x04, co), nil
}

// SetMute is a note-on/note-off pair sent in running-status form: one
// 0x9n status byte followed by the two data-byte pairs, not two
// separately-constructed note-on messages (which would each carry
// their own status byte and never compress).
func (e *Encoder) SetMute(c channel.ChannelIdentifier, on bool) ([]byte, error) {
	bo, co, err := c.ToWire()
	if err != nil {
		return nil, err
	}
	velocity := byte(0x3F)
	if on {
		velocity = 0x7F
	}
	status := 0x90 | (e.BankOffset + bo)
	return []byte{status, co, velocity, co, 0x00}, nil
}

func (e *Encoder) RequestMute(c channel.ChannelIdentifier) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	return e.sysex(boB, 0x05, 0x09, co), nil
}

// SetLevel is a control-change triple (NRPN select + set) sent in
// running-status form: one 0xBn status byte followed by the three
// data-byte pairs.
func (e *Encoder) SetLevel(c channel.ChannelIdentifier, level channel.Level) ([]byte, error) {
	bo, co, err := c.ToWire()
	if err != nil {
		return nil, err
	}
	status := 0xB0 | (e.BankOffset + bo)
	return []byte{status, 0x63, co, 0x62, 0x17, 0x06, byte(level)}, nil
}

func (e *Encoder) RequestLevel(c channel.ChannelIdentifier) ([]byte, error) {
	boB, co, err := e.addr(c)
	if err != nil {
		return nil, err
	}
	return e.sysex(boB, 0x05, 0x0B, 0x17, co), nil
}

func (e *Encoder) SetSendLevel(from, to channel.ChannelIdentifier, level channel.Level) ([]byte, error) {
	boFromB, coFrom, err := e.addr(from)
	if err != nil {
		return nil, err
	}
	boToB, coTo, err := e.addr(to)
	if err != nil {
		return nil, err
	}
	return e.sysex(boFromB, 0x0D, coFrom, boToB, coTo, byte(level)), nil
}

func (e *Encoder) RequestSendLevel(from, to channel.ChannelIdentifier) ([]byte, error) {
	boFromB, coFrom, err := e.addr(from)
	if err != nil {
		return nil, err
	}
	boToB, coTo, err := e.addr(to)
	if err != nil {
		return nil, err
	}
	return e.sysex(boFromB, 0x05, 0x0F, 0x0D, coFrom, boToB, coTo), nil
}
