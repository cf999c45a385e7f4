// Package strip implements the virtual strip: a fader position whose
// meaning the layer controller rebinds at runtime (spec §4.6). Grounded
// on original_source/dlive/virtual.py:VirtualChannel.
package strip

import (
	"sync"

	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/mixstate"
)

type Mode int

const (
	Unbound Mode = iota
	TieToZero
	TrackSendLevel
	TrackMasterLevel
	SDCA
)

type sdcaEntry struct {
	channel  channel.ChannelIdentifier
	baseline channel.Level
}

// Strip owns a channel identifier in the INPUT bank that the console
// treats as a fader, plus the binding that gives it meaning. It holds a
// non-owning reference to the session (spec §9 "cyclic references":
// session owns everything, strips hold handles back to it).
type Strip struct {
	id      channel.ChannelIdentifier
	session *mixstate.Session

	mu   sync.Mutex
	mode Mode

	base, dest channel.ChannelIdentifier
	sdca       []sdcaEntry
}

func New(session *mixstate.Session, id channel.ChannelIdentifier) *Strip {
	return &Strip{id: id, session: session, mode: Unbound}
}

func (s *Strip) ID() channel.ChannelIdentifier { return s.id }

func (s *Strip) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Unbind returns the strip to UNBOUND, labeled "[V-Ch]".
func (s *Strip) Unbind() {
	s.mu.Lock()
	s.mode = Unbound
	s.base, s.dest = channel.ChannelIdentifier{}, channel.ChannelIdentifier{}
	s.sdca = nil
	s.mu.Unlock()

	s.session.ChangeLabel(s.id, channel.NewLabel("[V-Ch]"))
}

// TieToZero sets the strip to force itself back to zero on any nonzero
// inbound level, labeled blank.
func (s *Strip) TieToZero() {
	s.mu.Lock()
	s.mode = TieToZero
	s.base, s.dest = channel.ChannelIdentifier{}, channel.ChannelIdentifier{}
	s.sdca = nil
	s.mu.Unlock()

	s.session.ChangeLabel(s.id, channel.NewLabel(""))
}

// BindSend binds the strip to track (and set) the send level between
// base and dest. If labelFromBase, the label is taken from base's own
// label prefixed "@" (the "inverse send" case, used in OUTPUTS mode
// where base varies per strip and dest is the fixed selected output);
// otherwise it is taken from dest's label prefixed ">" (the plain
// "send" case, used in SENDS_ON_FADER where base is the fixed selected
// input and dest varies per strip). Grounded on
// original_source/dlive/entity.py:VirtualChannel.bind_send's inverse flag.
func (s *Strip) BindSend(base, dest channel.ChannelIdentifier, labelFromBase bool) {
	s.mu.Lock()
	s.mode = TrackSendLevel
	s.base, s.dest = base, dest
	s.sdca = nil
	s.mu.Unlock()

	src := dest
	prefix := ">"
	if labelFromBase {
		src = base
		prefix = "@"
	}
	s.applyLabelFrom(src, prefix)
}

// BindMaster binds the strip to mirror base's own master level/mute.
func (s *Strip) BindMaster(base channel.ChannelIdentifier) {
	s.mu.Lock()
	s.mode = TrackMasterLevel
	s.base, s.dest = base, channel.ChannelIdentifier{}
	s.sdca = nil
	s.mu.Unlock()

	s.applyLabelFrom(base, "M ")
}

// BindSDCA snapshots the send levels of every affected channel toward
// dest and puts the strip into S-DCA mode (spec §4.5 S-DCA).
func (s *Strip) BindSDCA(affected []channel.ChannelIdentifier, dest channel.ChannelIdentifier) {
	entries := make([]sdcaEntry, 0, len(affected))
	for _, ch := range affected {
		sv, ok := s.session.SendValue(ch, dest)
		if !ok {
			continue
		}
		level, ok := sv.Current()
		if !ok {
			level = channel.Off
		}
		entries = append(entries, sdcaEntry{channel: ch, baseline: level})
	}

	s.mu.Lock()
	s.mode = SDCA
	s.dest = dest
	s.sdca = entries
	s.mu.Unlock()

	s.applyLabelFrom(dest, "=")
}

func (s *Strip) applyLabelFrom(src channel.ChannelIdentifier, prefix string) {
	c, ok := s.session.Channel(src)
	if !ok {
		return
	}
	label, _ := c.Label.Current()
	s.session.ChangeLabel(s.id, channel.NewLabel(prefix+string(label)))
}

// HandleLevel processes an inbound Level(self, v) per the bound mode
// (spec §4.6).
func (s *Strip) HandleLevel(v channel.Level) {
	s.mu.Lock()
	mode, base, dest, sdca := s.mode, s.base, s.dest, s.sdca
	s.mu.Unlock()

	switch mode {
	case Unbound:
		// no-op
	case TieToZero:
		if v > channel.Off {
			s.session.ChangeLevel(s.id, channel.Off)
		}
	case TrackSendLevel:
		s.session.ChangeSendLevel(base, dest, v)
	case TrackMasterLevel:
		s.session.ChangeLevel(base, v)
	case SDCA:
		applySDCA(s.session, sdca, dest, v)
	}
}

// HandleMute processes an inbound Mute(self, m) per the bound mode.
func (s *Strip) HandleMute(on bool) {
	s.mu.Lock()
	mode, base := s.mode, s.base
	s.mu.Unlock()

	switch mode {
	case TrackSendLevel, TieToZero, SDCA:
		if on {
			s.session.ChangeMute(s.id, false)
		}
	case Unbound:
		if !on {
			s.session.ChangeMute(s.id, true)
		}
	case TrackMasterLevel:
		s.session.ChangeMute(base, on)
	}
}

// Restore reverts every S-DCA-affected channel's send level to its
// snapshot baseline.
func (s *Strip) Restore() {
	s.mu.Lock()
	dest, sdca := s.dest, s.sdca
	s.mu.Unlock()

	for _, e := range sdca {
		s.session.ChangeSendLevel(e.channel, dest, e.baseline)
	}
}

// Accept drops the S-DCA snapshot; the affected set is cleared.
func (s *Strip) Accept() {
	s.mu.Lock()
	s.sdca = nil
	s.mu.Unlock()
}

// applySDCA implements the piecewise-linear fader-to-relative-delta
// mapping (spec §4.5 S-DCA): at the fader midpoint every affected send
// keeps its snapshotted baseline; at either end it moves toward 0 or
// full scaled by each channel's distance from that end. Applies to the
// entries snapshotted by the most recent BindSDCA; the layer controller
// rebinds with a freshly computed affected set on every selection
// change (spec §9 open question (b)).
func applySDCA(session *mixstate.Session, affected []sdcaEntry, dest channel.ChannelIdentifier, p channel.Level) {
	if p == channel.FaderMidpoint {
		return
	}
	ref := channel.Full
	if p < channel.FaderMidpoint {
		ref = channel.Off
	}
	denom := int(ref) - int(channel.FaderMidpoint)
	if denom == 0 {
		return
	}
	for _, e := range affected {
		delta := (int(ref) - int(e.baseline)) * (int(p) - int(channel.FaderMidpoint)) / denom
		newLevel := channel.Clamp(int(e.baseline) + delta)
		session.ChangeSendLevel(e.channel, dest, newLevel)
	}
}
