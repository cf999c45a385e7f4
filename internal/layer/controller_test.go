package layer

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/config"
	"github.com/m-vo/psurface/internal/mixstate"
	"github.com/m-vo/psurface/internal/strip"
	"github.com/m-vo/psurface/internal/transport"
)

func testController(t *testing.T) (*mixstate.Session, *Controller) {
	t.Helper()
	top := mixstate.TopologyFromConfig(config.Tracking{
		InputCount:           20,
		MonoAuxCount:         2,
		ExternalFXStart1:     3,
		ExternalFXCount:      2,
		VirtualStripStart1:   1,
		FeedbackMatrixIndex1: 20,
		TalkToMonitorIndex1:  1,
		TalkToStageIndex1:    2,
	})

	a, b := net.Pipe()
	c, d := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close(); c.Close(); d.Close() })
	go drain(b)
	go drain(d)

	out, err := transport.DialFromConnForTest(a)
	require.NoError(t, err)
	in, err := transport.DialFromConnForTest(c)
	require.NoError(t, err)

	session := mixstate.New(top, 0, out, in)

	scenes := config.Scenes{
		MixingStart1:      1,
		VirtualLeftStart1: 489,
		VirtualRight1:     495,
		Sends1:            199,
		CustomAux1:        210,
		CustomFX1:         211,
		CustomUtil1:       212,
	}
	ctrl := New(session, session.InputIDs(), scenes)
	return session, ctrl
}

func drain(c net.Conn) {
	buf := make([]byte, 256)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func setLabel(t *testing.T, s *mixstate.Session, id channel.ChannelIdentifier, text string) {
	t.Helper()
	ch, ok := s.Channel(id)
	require.True(t, ok)
	l := channel.NewLabel(text)
	ch.Label.Request(l)
	ch.Label.Resolve(l)
}

// configureOutputsLocked binds one strip per named input, using the
// "@<input label>" convention (base varies per strip, dest is fixed),
// and ties the remainder to zero.
func TestController_ConfigureOutputs_BindsNamedInputsAndTiesRemainder(t *testing.T) {
	s, ctrl := testController(t)
	inputs := s.InputIDs()
	setLabel(t, s, inputs[0], "Kick")
	setLabel(t, s, inputs[1], "Snare")
	out := s.AuxIDs()[0]

	ctrl.mu.Lock()
	ctrl.configureOutputsLocked(out)
	ctrl.mu.Unlock()

	assert.Equal(t, strip.TrackSendLevel, ctrl.strips[0].Mode())
	assert.Equal(t, strip.TrackSendLevel, ctrl.strips[1].Mode())
	assert.Equal(t, strip.TieToZero, ctrl.strips[2].Mode())
}

// resolveSend drives an input's send toward dest to level, as a
// console echo would during Sync's hydration, so channelFilter tests
// can exercise a send that actually resolved.
func resolveSend(t *testing.T, s *mixstate.Session, from, dest channel.ChannelIdentifier, level channel.Level) {
	t.Helper()
	sv, ok := s.SendValue(from, dest)
	require.True(t, ok)
	sv.Request(level)
	sv.Resolve(level)
}

// When the channel filter is on and a send has never resolved, it
// reads as Off, so its input stays hidden and ties to zero (spec's
// "not filtered or send != OFF" show-channel rule).
func TestController_ConfigureOutputs_FilterHidesUnresolvedSends(t *testing.T) {
	s, ctrl := testController(t)
	for _, id := range s.InputIDs() {
		setLabel(t, s, id, "Ch")
	}
	out := s.AuxIDs()[0]

	ctrl.mu.Lock()
	ctrl.channelFilter = true
	ctrl.configureOutputsLocked(out)
	ctrl.mu.Unlock()

	for i := 0; i < 15 && i < len(ctrl.strips); i++ {
		assert.Equal(t, strip.TieToZero, ctrl.strips[i].Mode(), "strip %d", i)
	}
}

// When the channel filter is on and an input's send toward the target
// output has resolved non-zero, the filter shows it instead of tying
// it to zero.
func TestController_ConfigureOutputs_FilterShowsResolvedNonZeroSend(t *testing.T) {
	s, ctrl := testController(t)
	inputs := s.InputIDs()
	for _, id := range inputs {
		setLabel(t, s, id, "Ch")
	}
	out := s.AuxIDs()[0]
	resolveSend(t, s, inputs[0], out, channel.ZeroDB)

	ctrl.mu.Lock()
	ctrl.channelFilter = true
	ctrl.configureOutputsLocked(out)
	ctrl.mu.Unlock()

	assert.Equal(t, strip.TrackSendLevel, ctrl.strips[0].Mode())
	for i := 1; i < 15 && i < len(ctrl.strips); i++ {
		assert.Equal(t, strip.TieToZero, ctrl.strips[i].Mode(), "strip %d", i)
	}
}

func TestController_ConfigureOutputs_BindsMasterOnStrip15(t *testing.T) {
	s, ctrl := testController(t)
	out := s.AuxIDs()[0]
	require.True(t, len(ctrl.strips) > 15)

	ctrl.mu.Lock()
	ctrl.configureOutputsLocked(out)
	ctrl.mu.Unlock()

	assert.Equal(t, strip.TrackMasterLevel, ctrl.strips[15].Mode())
}

func TestController_ConfigureSendsOnFader_BindsEachAuxAsDestination(t *testing.T) {
	s, ctrl := testController(t)
	auxes := s.AuxIDs()
	setLabel(t, s, auxes[0], "Mon 1")
	setLabel(t, s, auxes[1], "Mon 2")
	input := s.InputIDs()[0]

	ctrl.mu.Lock()
	ctrl.configureSendsOnFaderLocked(input)
	ctrl.mu.Unlock()

	assert.Equal(t, strip.TrackSendLevel, ctrl.strips[0].Mode())
	assert.Equal(t, strip.TrackSendLevel, ctrl.strips[1].Mode())
}

func TestController_OnSceneChange_MixingRangeClearsSelectionAndFeedback(t *testing.T) {
	s, ctrl := testController(t)

	ctrl.onSceneChange(ctrl.scenes.mixingStart.Add(2))

	assert.Equal(t, Mixing, ctrl.Mode())
	_, hasSel := ctrl.SelectedChannel()
	assert.False(t, hasSel)
	_ = s
}

func TestController_OnSceneChange_VirtualLeftRangeEntersOutputsMode(t *testing.T) {
	s, ctrl := testController(t)
	out := s.AuxIDs()[0]

	ctrl.mu.Lock()
	ctrl.lastOutput = out
	ctrl.mu.Unlock()

	ctrl.onSceneChange(ctrl.scenes.virtualLeftStart.Add(3))

	assert.Equal(t, Outputs, ctrl.Mode())
	ctrl.mu.Lock()
	bank := ctrl.bank
	ctrl.mu.Unlock()
	assert.Equal(t, 3, bank)
}

func TestController_OnSceneChange_SendsSceneEntersSendsOnFaderMode(t *testing.T) {
	s, ctrl := testController(t)
	in := s.InputIDs()[1]

	ctrl.mu.Lock()
	ctrl.lastInput = in
	ctrl.mu.Unlock()

	ctrl.onSceneChange(ctrl.scenes.sends)

	assert.Equal(t, SendsOnFader, ctrl.Mode())
	sel, has := ctrl.SelectedChannel()
	assert.True(t, has)
	assert.Equal(t, in, sel)
}

func TestController_OnSceneChange_CustomScenesClearSelection(t *testing.T) {
	_, ctrl := testController(t)

	ctrl.onSceneChange(ctrl.scenes.customAux)
	assert.Equal(t, CustomAux, ctrl.Mode())

	ctrl.onSceneChange(ctrl.scenes.customFX)
	assert.Equal(t, CustomFX, ctrl.Mode())

	ctrl.onSceneChange(ctrl.scenes.customUtil)
	assert.Equal(t, CustomUtil, ctrl.Mode())

	_, has := ctrl.SelectedChannel()
	assert.False(t, has)
}

func TestController_ToggleSDCAChannel_RebindsToFreshAffectedSet(t *testing.T) {
	s, ctrl := testController(t)
	in0, in1 := s.InputIDs()[0], s.InputIDs()[1]
	dest := s.AuxIDs()[0]

	ctrl.mu.Lock()
	ctrl.lastOutput = dest
	ctrl.mode = SDCA
	ctrl.mu.Unlock()

	require.NoError(t, ctrl.ToggleSDCAChannel(in0))
	ctrl.mu.Lock()
	affectedAfterFirst := ctrl.affectedSDCAChannelsLocked()
	ctrl.mu.Unlock()
	assert.Len(t, affectedAfterFirst, 1)

	require.NoError(t, ctrl.ToggleSDCAChannel(in1))
	ctrl.mu.Lock()
	affectedAfterSecond := ctrl.affectedSDCAChannelsLocked()
	ctrl.mu.Unlock()
	assert.Len(t, affectedAfterSecond, 2)

	assert.Equal(t, strip.SDCA, ctrl.strips[0].Mode())
}

func TestController_ToggleSDCAChannel_RejectsOutsideSDCAMode(t *testing.T) {
	s, ctrl := testController(t)
	err := ctrl.ToggleSDCAChannel(s.InputIDs()[0])
	assert.Error(t, err)
}

// CycleCustomMode advances its internal index through aux -> fx -> util
// -> aux regardless of whether the console has echoed the scene back
// yet (mode itself only changes once onSceneChange fires, exercised
// separately in TestController_OnSceneChange_CustomScenesClearSelection).
func TestController_CycleCustomMode_RotatesIndexAuxFXUtil(t *testing.T) {
	_, ctrl := testController(t)

	ctrl.mu.Lock()
	ctrl.customCycleIdx = -1
	ctrl.mu.Unlock()

	ctrl.CycleCustomMode()
	assert.Equal(t, 0, ctrl.customCycleIdx)

	ctrl.CycleCustomMode()
	assert.Equal(t, 1, ctrl.customCycleIdx)

	ctrl.CycleCustomMode()
	assert.Equal(t, 2, ctrl.customCycleIdx)

	ctrl.CycleCustomMode()
	assert.Equal(t, 0, ctrl.customCycleIdx)
}

func TestController_ToggleChannelFilter_RerunsActiveReconfiguration(t *testing.T) {
	s, ctrl := testController(t)
	setLabel(t, s, s.InputIDs()[0], "Kick")
	out := s.AuxIDs()[0]

	ctrl.mu.Lock()
	ctrl.configureOutputsLocked(out)
	ctrl.mu.Unlock()
	require.Equal(t, strip.TrackSendLevel, ctrl.strips[0].Mode())

	ctrl.ToggleChannelFilter()

	// With the filter now on and no send level set, the named input no
	// longer shows, so the strip reverts to tied-to-zero.
	assert.Equal(t, strip.TieToZero, ctrl.strips[0].Mode())
}
