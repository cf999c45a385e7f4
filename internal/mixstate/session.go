// Package mixstate implements the Session: the aggregated collection of
// tracked values for every channel attribute, the startup sync()
// protocol, and the change_*/get_* operations UI and layer-controller
// code call. Grounded on original_source/dlive/api.py:DLive.
package mixstate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m-vo/psurface/internal/bus"
	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/config"
	"github.com/m-vo/psurface/internal/scheduler"
	"github.com/m-vo/psurface/internal/tracked"
	"github.com/m-vo/psurface/internal/transport"
	"github.com/m-vo/psurface/internal/wire"
	"github.com/m-vo/psurface/logging"
)

// Topology is the resolved (0-based) channel counts and distinguished
// indices driving allocation (spec §4.4).
type Topology struct {
	InputCount      int
	MonoAuxCount    int
	StereoAuxCount  int
	MonoFXCount     int
	StereoFXCount   int
	ExternalFXStart int
	ExternalFXCount int
	VirtualStripIDs []channel.ChannelIdentifier
	FeedbackMatrix  channel.ChannelIdentifier
	TalkToMonitor   channel.ChannelIdentifier
	TalkToStage     channel.ChannelIdentifier
}

// TopologyFromConfig converts the 1-based document values into a
// 0-based Topology, ported range-for-range from
// original_source/dlive/api.py:DLive.__init__'s channel-allocation loops.
func TopologyFromConfig(t config.Tracking) Topology {
	top := Topology{
		InputCount:      t.InputCount,
		MonoAuxCount:    t.MonoAuxCount,
		StereoAuxCount:  t.StereoAuxCount,
		MonoFXCount:     t.MonoFXCount,
		StereoFXCount:   t.StereoFXCount,
		ExternalFXStart: t.ExternalFXStart1 - 1,
		ExternalFXCount: t.ExternalFXCount,
		FeedbackMatrix:  channel.New(channel.Input, t.FeedbackMatrixIndex1-1),
		TalkToMonitor:   channel.New(channel.Input, t.TalkToMonitorIndex1-1),
		TalkToStage:     channel.New(channel.Input, t.TalkToStageIndex1-1),
	}
	for i := t.VirtualStripStart1 - 1; i < t.InputCount; i++ {
		top.VirtualStripIDs = append(top.VirtualStripIDs, channel.New(channel.Input, i))
	}
	return top
}

// Session owns the full channel topology, the codec, the transport
// handles, and the scheduler. One instance per process.
type Session struct {
	topology Topology

	registry *tracked.Registry

	channels map[channel.ChannelIdentifier]*Channel

	inputIDs  []channel.ChannelIdentifier
	auxIDs    []channel.ChannelIdentifier
	fxIDs     []channel.ChannelIdentifier
	extFXIDs  []channel.ChannelIdentifier
	mainID    channel.ChannelIdentifier
	outputIDs []channel.ChannelIdentifier

	out *transport.Port
	in  *transport.Port

	encoder        *wire.Encoder
	outboundDecode *wire.Decoder
	inboundDecode  *wire.Decoder

	sched *scheduler.Scheduler

	StatusEvent      bus.Event[string]
	ChannelUpdateEvt bus.AsyncEvent[channel.ChannelIdentifier]
	SceneUpdateEvt   bus.Event[channel.Scene]

	sceneMu      sync.Mutex
	currentScene channel.Scene
	haveScene    bool

	log *slog.Logger
}

// New constructs a Session and allocates every tracked value for the
// configured topology. Virtual strips are NOT allocated here; the
// layer controller (internal/layer) owns that, since they rebind rather
// than belonging to the channel map.
func New(top Topology, bankOffset byte, out, in *transport.Port) *Session {
	s := &Session{
		topology:       top,
		registry:       tracked.NewRegistry(),
		channels:       make(map[channel.ChannelIdentifier]*Channel),
		out:            out,
		in:             in,
		encoder:        wire.NewEncoder(bankOffset),
		outboundDecode: wire.NewDecoder(bankOffset),
		inboundDecode:  wire.NewDecoder(bankOffset),
		sched:          scheduler.New(),
		log:            logging.Get(logging.APP),
	}

	onIdle := func(id channel.ChannelIdentifier) func() {
		return func() { s.ChannelUpdateEvt.Emit(id) }
	}

	for i := 0; i < top.InputCount; i++ {
		id := channel.New(channel.Input, i)
		s.channels[id] = newChannel(s.registry, id, KindInput, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.inputIDs = append(s.inputIDs, id)
	}
	for i := 0; i < top.MonoAuxCount; i++ {
		id := channel.New(channel.MonoAux, i)
		s.channels[id] = newChannel(s.registry, id, KindOutput, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.auxIDs = append(s.auxIDs, id)
	}
	for i := 0; i < top.StereoAuxCount; i++ {
		id := channel.New(channel.StereoAux, i)
		s.channels[id] = newChannel(s.registry, id, KindOutput, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.auxIDs = append(s.auxIDs, id)
	}
	for i := 0; i < top.MonoFXCount; i++ {
		id := channel.New(channel.MonoFXSend, i)
		s.channels[id] = newChannel(s.registry, id, KindOutput, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.fxIDs = append(s.fxIDs, id)
	}
	for i := 0; i < top.StereoFXCount; i++ {
		id := channel.New(channel.StereoFXSend, i)
		s.channels[id] = newChannel(s.registry, id, KindOutput, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.fxIDs = append(s.fxIDs, id)
	}
	// External FX returns live on the mono aux bank, routed both ways
	// (original's MultiChannel); FXReturn is a distinct bank reserved for
	// the built-in stereo FX returns, which this topology doesn't track.
	for i := top.ExternalFXStart; i < top.ExternalFXStart+top.ExternalFXCount; i++ {
		id := channel.New(channel.MonoAux, i)
		s.channels[id] = newChannel(s.registry, id, KindMulti, onIdle(id), onIdle(id), onIdle(id), onIdle(id), onIdle(id))
		s.extFXIDs = append(s.extFXIDs, id)
	}
	s.mainID = channel.New(channel.Main, 0)
	s.channels[s.mainID] = newChannel(s.registry, s.mainID, KindOutput, onIdle(s.mainID), onIdle(s.mainID), onIdle(s.mainID), onIdle(s.mainID), onIdle(s.mainID))

	s.outputIDs = append(s.outputIDs, s.auxIDs...)
	s.outputIDs = append(s.outputIDs, s.fxIDs...)
	s.outputIDs = append(s.outputIDs, s.extFXIDs...)
	s.outputIDs = append(s.outputIDs, s.mainID)

	return s
}

func (s *Session) Channel(id channel.ChannelIdentifier) (*Channel, bool) {
	c, ok := s.channels[id]
	return c, ok
}

func (s *Session) InputIDs() []channel.ChannelIdentifier  { return append([]channel.ChannelIdentifier{}, s.inputIDs...) }
func (s *Session) OutputIDs() []channel.ChannelIdentifier { return append([]channel.ChannelIdentifier{}, s.outputIDs...) }
func (s *Session) AuxIDs() []channel.ChannelIdentifier    { return append([]channel.ChannelIdentifier{}, s.auxIDs...) }
func (s *Session) FXIDs() []channel.ChannelIdentifier     { return append([]channel.ChannelIdentifier{}, s.fxIDs...) }
func (s *Session) ExternalFXIDs() []channel.ChannelIdentifier {
	return append([]channel.ChannelIdentifier{}, s.extFXIDs...)
}
func (s *Session) MainID() channel.ChannelIdentifier { return s.mainID }

// TalkToStageChannel and TalkToMonitorChannel expose the two
// distinguished input indices from config as first-class accessors
// (SPEC_FULL §4.4, grounded on original_source/dlive/api.py's
// talk_to_stage_channel/talk_to_monitor_channel properties).
func (s *Session) TalkToStageChannel() channel.ChannelIdentifier   { return s.topology.TalkToStage }
func (s *Session) TalkToMonitorChannel() channel.ChannelIdentifier { return s.topology.TalkToMonitor }

// FeedbackMatrixChannel exposes the configured feedback-matrix send
// destination (spec §4.4 topology.FeedbackMatrix).
func (s *Session) FeedbackMatrixChannel() channel.ChannelIdentifier { return s.topology.FeedbackMatrix }

// CurrentScene reports the last scene echoed by the console, if any has
// been observed yet.
func (s *Session) CurrentScene() (channel.Scene, bool) {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()
	return s.currentScene, s.haveScene
}

// Notify emits a human-readable status line (spec §4.4's StatusEvent),
// the single notification surface every layer/strip status message
// goes through.
func (s *Session) Notify(msg string) {
	s.StatusEvent.Emit(msg)
}

// Listen starts the two inbound reader loops (spec §5 "Long-lived
// threads: 1. Inbound reader"). Each decoded message is resolved onto
// its tracked value synchronously, on the reader's own goroutine.
func (s *Session) Listen() {
	go s.readLoop(s.out, s.outboundDecode)
	go s.readLoop(s.in, s.inboundDecode)
	go s.staleSweeper()
}

func (s *Session) readLoop(port *transport.Port, dec *wire.Decoder) {
	r := midiListener{port: port}
	for {
		msg, err := r.next()
		if err != nil {
			s.log.Error("inbound read failed, port closed", "error", err)
			return
		}
		decoded, ok := dec.Feed(msg)
		if !ok {
			continue
		}
		s.resolve(decoded)
	}
}

func (s *Session) resolve(m wire.Message) {
	switch v := m.(type) {
	case wire.SceneMsg:
		s.sceneMu.Lock()
		s.currentScene, s.haveScene = v.Scene, true
		s.sceneMu.Unlock()
		s.SceneUpdateEvt.Emit(v.Scene)
	case wire.LabelMsg:
		if c, ok := s.channels[v.Channel]; ok {
			c.Label.Resolve(v.Label)
		}
	case wire.ColourMsg:
		if c, ok := s.channels[v.Channel]; ok {
			c.Colour.Resolve(v.Colour)
		}
	case wire.MuteMsg:
		if c, ok := s.channels[v.Channel]; ok {
			c.Mute.Resolve(v.On)
		}
	case wire.LevelMsg:
		if c, ok := s.channels[v.Channel]; ok {
			c.Level.Resolve(v.Level)
		}
	case wire.SendLevelMsg:
		if c, ok := s.channels[v.From]; ok && c.IsInputLike() {
			id := v.From
			sv := c.Send(s.registry, v.To, func(dest channel.ChannelIdentifier) {
				s.ChannelUpdateEvt.Emit(id)
			})
			sv.Resolve(v.Level)
		}
	case wire.UnknownSysexMsg:
		s.log.Debug("unrecognized sysex", "reason", v.Reason, "bytes", v.Bytes)
	}
}

// staleSweeper purges every tracked value of requests older than 1
// second, every 3 seconds, notifying the count when non-zero (spec
// §4.4).
func (s *Session) staleSweeper() {
	s.sched.ExecuteInterval("stale-sweep", 3*time.Second, func() {
		n := s.registry.PurgeAll(time.Second)
		if n > 0 {
			s.StatusEvent.Emit(fmt.Sprintf("Purged %d stale requests", n))
		}
	})
}

func (s *Session) send(b []byte) error {
	err := s.out.Write(b)
	if err != nil {
		if err == transport.ErrOverload {
			s.StatusEvent.Emit("! Overload !")
		}
	}
	return err
}

// ChangeLabel enqueues a label request and, unless coalesced,
// transmits. Never sends without first queuing (spec §4.4).
func (s *Session) ChangeLabel(id channel.ChannelIdentifier, label channel.Label) error {
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("mixstate: unknown channel %v", id)
	}
	queued, _ := c.Label.Request(label)
	if !queued {
		return nil
	}
	b, err := s.encoder.SetLabel(id, label)
	if err != nil {
		return err
	}
	return s.send(b)
}

func (s *Session) ChangeColour(id channel.ChannelIdentifier, col channel.Colour) error {
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("mixstate: unknown channel %v", id)
	}
	c.Colour.Request(col) // ImmediateValue: no queue, no echo to wait for
	b, err := s.encoder.SetColour(id, col)
	if err != nil {
		return err
	}
	return s.send(b)
}

func (s *Session) ChangeMute(id channel.ChannelIdentifier, on bool) error {
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("mixstate: unknown channel %v", id)
	}
	queued, _ := c.Mute.Request(on)
	if !queued {
		return nil
	}
	b, err := s.encoder.SetMute(id, on)
	if err != nil {
		return err
	}
	return s.send(b)
}

// ChangeSelect updates a channel's local selection flag. Selection is a
// layer-controller concept with no wire representation; it never
// transmits (spec §4.5 S-DCA: "selection" just marks which input
// channels are affected by the next S-DCA bind).
func (s *Session) ChangeSelect(id channel.ChannelIdentifier, on bool) error {
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("mixstate: unknown channel %v", id)
	}
	c.Select.Request(on)
	c.Select.Resolve(on)
	return nil
}

func (s *Session) ChangeLevel(id channel.ChannelIdentifier, level channel.Level) error {
	c, ok := s.channels[id]
	if !ok {
		return fmt.Errorf("mixstate: unknown channel %v", id)
	}
	queued, _ := c.Level.Request(level)
	if !queued {
		return nil
	}
	b, err := s.encoder.SetLevel(id, level)
	if err != nil {
		return err
	}
	return s.send(b)
}

func (s *Session) ChangeSendLevel(from, to channel.ChannelIdentifier, level channel.Level) error {
	c, ok := s.channels[from]
	if !ok || !c.IsInputLike() {
		return fmt.Errorf("mixstate: %v cannot carry sends", from)
	}
	sv := c.Send(s.registry, to, func(dest channel.ChannelIdentifier) {
		s.ChannelUpdateEvt.Emit(from)
	})
	queued, _ := sv.Request(level)
	if !queued {
		return nil
	}
	b, err := s.encoder.SetSendLevel(from, to, level)
	if err != nil {
		return err
	}
	return s.send(b)
}

// SendValue returns the tracked send level from one input-like channel
// toward dest, hydrating it through the session's registry if this is
// the first access. Used by the virtual-strip layer to read a send's
// current value before binding S-DCA snapshots.
func (s *Session) SendValue(from, to channel.ChannelIdentifier) (*tracked.Value[channel.Level], bool) {
	c, ok := s.channels[from]
	if !ok || !c.IsInputLike() {
		return nil, false
	}
	return c.Send(s.registry, to, func(dest channel.ChannelIdentifier) {
		s.ChannelUpdateEvt.Emit(from)
	}), true
}

// ChangeFeedbackSource routes the feedback matrix to *id, zeroing every
// other send channel's level to the feedback bus without tracking the
// result; id == nil routes nothing and zeros every input (spec §4.4
// change_feedback_source, whose Python Optional[ChannelIdentifier]
// argument this pointer mirrors).
func (s *Session) ChangeFeedbackSource(id *channel.ChannelIdentifier) {
	for _, from := range s.inputIDs {
		level := channel.Off
		if id != nil && from == *id {
			level = channel.ZeroDB
		}
		b, err := s.encoder.SetSendLevel(from, s.topology.FeedbackMatrix, level)
		if err != nil {
			continue
		}
		s.send(b)
	}
}

func (s *Session) ChangeScene(scene channel.Scene) error {
	b, err := s.encoder.RecallScene(scene)
	if err != nil {
		return err
	}
	return s.send(b)
}

// Dump renders a debug table of every channel's tracked attributes (the
// CLI `d` command), the way
// original_source/dlive/api.py:DLive.__str__ does with tabulate.
func (s *Session) Dump() string {
	return dump(s)
}
