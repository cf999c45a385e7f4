package mixstate

import (
	"time"

	"github.com/m-vo/psurface/internal/channel"
)

// Sync runs the startup dance (spec §4.4), restartable. Blocking: it
// sleeps through the quiescence waits the protocol requires.
func (s *Session) Sync(mixingStartScene channel.Scene) error {
	s.StatusEvent.Emit("Syncing…")

	s.waitSettled()

	if err := s.ChangeScene(mixingStartScene); err != nil {
		return err
	}

	s.ChangeFeedbackSource(nil)

	s.outboundDecode.SetQuirksMode(true)
	s.inboundDecode.SetQuirksMode(true)
	for _, id := range s.allChannelIDs() {
		s.requestMute(id)
	}
	for _, id := range s.allChannelIDs() {
		s.requestLabel(id)
	}
	s.waitSettled()
	s.outboundDecode.SetQuirksMode(false)
	s.inboundDecode.SetQuirksMode(false)

	s.StatusEvent.Emit("Hydrating…")
	for _, id := range s.allChannelIDs() {
		s.requestColour(id)
		s.requestLevel(id)
	}
	dests := append(append([]channel.ChannelIdentifier{}, s.auxIDs...), s.fxIDs...)
	dests = append(dests, s.extFXIDs...)
	for _, from := range s.inputIDs {
		for _, to := range dests {
			s.requestSendLevel(from, to)
		}
	}
	s.waitSettled()

	s.sched.ExecuteInterval("colour-repoll", 6*time.Second, func() {
		for _, id := range s.allChannelIDs() {
			s.requestColour(id)
		}
	})

	s.StatusEvent.Emit("Fully hydrated")
	return nil
}

func (s *Session) allChannelIDs() []channel.ChannelIdentifier {
	ids := make([]channel.ChannelIdentifier, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) waitSettled() {
	for !s.outboundDecode.Settled() || !s.inboundDecode.Settled() {
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *Session) requestMute(id channel.ChannelIdentifier) {
	if b, err := s.encoder.RequestMute(id); err == nil {
		s.send(b)
	}
}

func (s *Session) requestLabel(id channel.ChannelIdentifier) {
	if b, err := s.encoder.RequestLabel(id); err == nil {
		s.send(b)
	}
}

func (s *Session) requestColour(id channel.ChannelIdentifier) {
	if b, err := s.encoder.RequestColour(id); err == nil {
		s.send(b)
	}
}

func (s *Session) requestLevel(id channel.ChannelIdentifier) {
	if b, err := s.encoder.RequestLevel(id); err == nil {
		s.send(b)
	}
}

func (s *Session) requestSendLevel(from, to channel.ChannelIdentifier) {
	if b, err := s.encoder.RequestSendLevel(from, to); err == nil {
		s.send(b)
	}
}
