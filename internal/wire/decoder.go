package wire

import (
	"fmt"
	"sync"
	"time"

	midi "gitlab.com/gomidi/midi/v2"

	"github.com/m-vo/psurface/internal/channel"
)

type frameKind int

const (
	kindSysex frameKind = iota
	kindCC
	kindNoteOn
	kindProgramChange
)

type frame struct {
	kind frameKind

	sysexData []byte

	midiChannel byte // MIDI channel nibble embedded in the status byte (B+bo)
	controller  byte // CC controller number
	value       byte // CC value, note velocity, or program number
	key         byte // note key, for note_on
}

// Decoder holds the sliding 3-message window (spec §4.1) and dispatches
// each newly-fed MIDI message against the decode rules, most-recent
// frame at index 0. Grounded on original_source/dlive/encoding.py's
// Decoder state machine.
type Decoder struct {
	mu sync.Mutex

	bankOffset byte
	quirksMode bool

	window [3]frame
	filled int

	lastEventAt time.Time
}

func NewDecoder(bankOffset byte) *Decoder {
	return &Decoder{bankOffset: bankOffset}
}

// SetQuirksMode toggles the mute/colour ambiguity window used during
// Session.sync() (spec §4.4 step 4).
func (d *Decoder) SetQuirksMode(on bool) {
	d.mu.Lock()
	d.quirksMode = on
	d.mu.Unlock()
}

// Settled reports whether more than 0.8s have passed since the last fed
// event, the quiescence check Session.sync() polls on.
func (d *Decoder) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastEventAt.IsZero() {
		return true
	}
	return time.Since(d.lastEventAt) > 800*time.Millisecond
}

func (d *Decoder) push(f frame) {
	d.window[2] = d.window[1]
	d.window[1] = d.window[0]
	d.window[0] = f
	if d.filled < 3 {
		d.filled++
	}
}

func (d *Decoder) clear() {
	d.window = [3]frame{}
	d.filled = 0
}

// Feed decodes one incoming MIDI message, returning the Message it
// completed, if any. Malformed or unrecognised frames never abort
// decoding; sysex frames the decoder cannot interpret yield
// UnknownSysexMsg instead of an error.
func (d *Decoder) Feed(msg midi.Message) (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastEventAt = time.Now()

	f, ok := toFrame(msg)
	if !ok {
		return nil, false
	}
	d.push(f)

	if d.window[0].kind == kindSysex {
		m := d.decodeSysex(d.window[0].sysexData)
		d.clear()
		return m, true
	}

	if d.filled >= 3 &&
		d.window[2].kind == kindCC && d.window[2].controller == 0x63 &&
		d.window[1].kind == kindCC && d.window[1].controller == 0x62 &&
		d.window[0].kind == kindCC && d.window[0].controller == 0x06 {
		param := d.window[1].value
		co := d.window[2].value
		level := d.window[0].value
		bo := d.window[2].midiChannel - d.bankOffset
		d.clear()
		if param != 0x17 {
			return nil, true
		}
		ch, err := channel.FromWire(bo, co)
		if err != nil {
			return nil, true
		}
		return LevelMsg{Channel: ch, Level: channel.Clamp(int(level))}, true
	}

	if d.filled >= 2 &&
		d.window[1].kind == kindNoteOn && (d.window[1].value == 0x7F || d.window[1].value == 0x3F) &&
		d.window[0].kind == kindNoteOn && d.window[0].value == 0x00 &&
		d.window[1].midiChannel == d.window[0].midiChannel &&
		d.window[1].key == d.window[0].key {
		bo := d.window[1].midiChannel - d.bankOffset
		co := d.window[1].key
		on := d.window[1].value == 0x7F
		d.clear()
		ch, err := channel.FromWire(bo, co)
		if err != nil {
			return nil, true
		}
		return MuteMsg{Channel: ch, On: on}, true
	}

	if d.filled >= 2 &&
		d.window[1].kind == kindCC && d.window[1].controller == 0x00 &&
		d.window[0].kind == kindProgramChange {
		bank := d.window[1].value
		offset := d.window[0].value
		d.clear()
		return SceneMsg{Scene: channel.FromBankOffset(bank, offset)}, true
	}

	return nil, false
}

func (d *Decoder) decodeSysex(data []byte) Message {
	if !hasHeader(data) {
		return UnknownSysexMsg{Bytes: data, Reason: "missing or malformed sysex header"}
	}
	rest := data[len(Header):]
	if len(rest) < 2 {
		return UnknownSysexMsg{Bytes: data, Reason: "truncated sysex payload"}
	}

	boB := rest[0]
	cmd := rest[1]
	bo := boB - d.bankOffset

	switch {
	case cmd == 0x02:
		if len(rest) < 3 {
			return UnknownSysexMsg{Bytes: data, Reason: "truncated label payload"}
		}
		co := rest[2]
		ch, err := channel.FromWire(bo, co)
		if err != nil {
			return UnknownSysexMsg{Bytes: data, Reason: err.Error()}
		}
		return LabelMsg{Channel: ch, Label: channel.NewLabel(string(rest[3:]))}

	case cmd == 0x05 && len(rest) >= 4 && rest[3] <= 0x07:
		if d.quirksMode {
			return UnknownSysexMsg{Bytes: data, Reason: "ambiguous colour vs mirrored mute-request during quirks mode"}
		}
		co := rest[2]
		ch, err := channel.FromWire(bo, co)
		if err != nil {
			return UnknownSysexMsg{Bytes: data, Reason: err.Error()}
		}
		col, err := channel.NewColour(int(rest[3]))
		if err != nil {
			return UnknownSysexMsg{Bytes: data, Reason: err.Error()}
		}
		return ColourMsg{Channel: ch, Colour: col}

	case cmd == 0x0D:
		body := append([]byte{}, rest...)
		if len(body) == 5 {
			// Firmware bug workaround: short form omits the to-channel's
			// bank-offset byte; synthesize it at position 3 using the
			// configured bank offset (spec §4.1).
			synth := make([]byte, 0, 6)
			synth = append(synth, body[:3]...)
			synth = append(synth, d.bankOffset)
			synth = append(synth, body[3:]...)
			body = synth
		}
		if len(body) != 6 {
			return UnknownSysexMsg{Bytes: data, Reason: fmt.Sprintf("unexpected send-level payload length %d", len(body))}
		}
		boFrom := body[0] - d.bankOffset
		coFrom := body[2]
		boTo := body[3] - d.bankOffset
		coTo := body[4]
		level := body[5]
		from, err := channel.FromWire(boFrom, coFrom)
		if err != nil {
			return UnknownSysexMsg{Bytes: data, Reason: err.Error()}
		}
		to, err := channel.FromWire(boTo, coTo)
		if err != nil {
			return UnknownSysexMsg{Bytes: data, Reason: err.Error()}
		}
		return SendLevelMsg{From: from, To: to, Level: channel.Clamp(int(level))}

	default:
		return UnknownSysexMsg{Bytes: data, Reason: "unrecognized sysex command"}
	}
}

func toFrame(msg midi.Message) (frame, bool) {
	switch msg.Type() {
	case midi.SysExMsg:
		var data []byte
		if !msg.GetSysEx(&data) {
			return frame{}, false
		}
		return frame{kind: kindSysex, sysexData: data}, true

	case midi.ControlChangeMsg:
		var ch, control, value uint8
		if !msg.GetControlChange(&ch, &control, &value) {
			return frame{}, false
		}
		return frame{kind: kindCC, midiChannel: ch, controller: control, value: value}, true

	case midi.NoteOnMsg:
		var ch, key, velocity uint8
		if !msg.GetNoteOn(&ch, &key, &velocity) {
			return frame{}, false
		}
		return frame{kind: kindNoteOn, midiChannel: ch, key: key, value: velocity}, true

	case midi.ProgramChangeMsg:
		var ch, program uint8
		if !msg.GetProgramChange(&ch, &program) {
			return frame{}, false
		}
		return frame{kind: kindProgramChange, midiChannel: ch, value: program}, true

	default:
		return frame{}, false
	}
}
