package mixstate

import (
	"bufio"
	"fmt"

	midi "gitlab.com/gomidi/midi/v2"

	"github.com/m-vo/psurface/internal/transport"
)

// midiListener frames the mixrack's raw TCP byte stream into discrete
// midi.Message values. gomidi/midi/v2's own stream listener
// (midi.ListenTo) is built for local MIDI drivers (drivers.In), not an
// arbitrary net.Conn, so the four message shapes this dialect actually
// uses (spec §4.1) are framed by hand; message semantics (Type/GetXXX)
// still come from the library. Running status (status byte omitted on
// a repeat of the previous channel-voice message type, spec §6) is
// tracked across calls, since the console legitimately relies on it.
type midiListener struct {
	port *transport.Port

	runningStatus byte // 0 means none in effect
}

func (l *midiListener) reader() *bufio.Reader {
	return l.port.Reader()
}

func (l *midiListener) next() (midi.Message, error) {
	r := l.reader()

	first, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("mixstate: reading status byte: %w", err)
	}

	status := first
	leadingDataByte := byte(0)
	haveLeadingDataByte := false

	if first < 0x80 {
		// No status byte: first is the leading data byte of a
		// running-status repeat of the last channel-voice message.
		if l.runningStatus == 0 {
			// Nothing to run with; drop and resync on the next byte.
			return l.next()
		}
		status = l.runningStatus
		leadingDataByte = first
		haveLeadingDataByte = true
	}

	switch {
	case status == 0xF0:
		l.runningStatus = 0 // sysex cancels any running status
		data := []byte{status}
		for {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("mixstate: reading sysex body: %w", err)
			}
			data = append(data, b)
			if b == 0xF7 {
				break
			}
		}
		return midi.Message(data), nil

	case status >= 0x90 && status <= 0x9F, status >= 0xB0 && status <= 0xBF:
		l.runningStatus = status
		data := make([]byte, 3)
		data[0] = status
		rest := data[1:]
		if haveLeadingDataByte {
			rest[0] = leadingDataByte
			rest = rest[1:]
		}
		if _, err := fillFull(r, rest); err != nil {
			return nil, err
		}
		return midi.Message(data), nil

	case status >= 0xC0 && status <= 0xCF:
		l.runningStatus = status
		data := make([]byte, 2)
		data[0] = status
		rest := data[1:]
		if haveLeadingDataByte {
			rest[0] = leadingDataByte
			rest = rest[1:]
		}
		if _, err := fillFull(r, rest); err != nil {
			return nil, err
		}
		return midi.Message(data), nil

	default:
		// Unrecognized status byte for this dialect; drop it and let the
		// caller re-synchronize on the next read rather than wedging the
		// reader permanently.
		l.runningStatus = 0
		return l.next()
	}
}

func fillFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		b, err := r.ReadByte()
		if err != nil {
			return n, fmt.Errorf("mixstate: reading message body: %w", err)
		}
		buf[n] = b
		n++
	}
	return n, nil
}
