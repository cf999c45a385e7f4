// Package layer implements the bank/mode state machine that rebinds the
// virtual strips in response to scene recalls and explicit selections.
// Grounded on original_source/dlive/virtual.py:LayerController, merged
// with original_source/state/layers.py's separate S-DCA-carrying
// variant into a single state machine.
package layer

import (
	"fmt"
	"sync"

	"github.com/m-vo/psurface/internal/bus"
	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/config"
	"github.com/m-vo/psurface/internal/mixstate"
	"github.com/m-vo/psurface/internal/strip"
)

type Mode int

const (
	Mixing Mode = iota
	SendsOnFader
	Outputs
	SDCA
	CustomAux
	CustomFX
	CustomUtil
)

func (m Mode) String() string {
	switch m {
	case Mixing:
		return "Mixing"
	case SendsOnFader:
		return "SendsOnFader"
	case Outputs:
		return "Outputs"
	case SDCA:
		return "S-DCA"
	case CustomAux:
		return "Custom | AUX"
	case CustomFX:
		return "Custom | FX"
	case CustomUtil:
		return "Custom | UTIL"
	default:
		return "unknown"
	}
}

// sceneMap is the fixed scene layout the controller is built from
// (spec §4.5), converted from the document's 1-based values.
type sceneMap struct {
	mixingStart      channel.Scene
	virtualLeftStart channel.Scene
	virtualRight     channel.Scene
	sends            channel.Scene
	customAux        channel.Scene
	customFX         channel.Scene
	customUtil       channel.Scene
}

func sceneMapFromConfig(c config.Scenes) sceneMap {
	scene := func(n int) channel.Scene {
		s, _ := channel.NewScene(n)
		return s
	}
	return sceneMap{
		mixingStart:      scene(c.MixingStart1 - 1),
		virtualLeftStart: scene(c.VirtualLeftStart1 - 1),
		virtualRight:     scene(c.VirtualRight1 - 1),
		sends:            scene(c.Sends1 - 1),
		customAux:        scene(c.CustomAux1 - 1),
		customFX:         scene(c.CustomFX1 - 1),
		customUtil:       scene(c.CustomUtil1 - 1),
	}
}

// sendsTarget distinguishes the two destination groups SendsOnFader can
// cycle between (spec §4.5); false is Aux, true is FX.
type sendsTarget bool

const (
	sendsToAux sendsTarget = false
	sendsToFX  sendsTarget = true
)

// Controller owns the bank/mode/filter state and drives virtual-strip
// (re)binding. One instance per session.
type Controller struct {
	session *mixstate.Session
	strips  []*strip.Strip
	scenes  sceneMap

	mu             sync.Mutex
	bank           int
	mode           Mode
	lastOutput     channel.ChannelIdentifier
	lastInput      channel.ChannelIdentifier
	channelFilter  bool
	sendsTarget    sendsTarget
	selected       channel.ChannelIdentifier
	hasSelection   bool
	sdcaActive     bool
	customCycleIdx int
	reconfigure    func()

	OnSelectionChanged bus.AsyncEvent[channel.ChannelIdentifier]
	OnModeChanged      bus.AsyncEvent[Mode]
	OnModifierChanged  bus.AsyncEvent[string]
}

// New builds a Controller over session's virtual-strip channel IDs
// (spec §4.4 topology.VirtualStripIDs) and the given scene layout, and
// subscribes to scene-change notifications.
func New(session *mixstate.Session, virtualStripIDs []channel.ChannelIdentifier, scenes config.Scenes) *Controller {
	c := &Controller{
		session:     session,
		scenes:      sceneMapFromConfig(scenes),
		lastOutput:  session.OutputIDs()[0],
		lastInput:   session.InputIDs()[0],
		sendsTarget: sendsToAux,
		reconfigure: func() {},
	}
	for _, id := range virtualStripIDs {
		c.strips = append(c.strips, strip.New(session, id))
	}
	session.SceneUpdateEvt.Subscribe(c.onSceneChange)
	return c
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SelectedChannel reports the channel currently highlighted by the
// active mode, if any.
func (c *Controller) SelectedChannel() (channel.ChannelIdentifier, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasSelection
}

// SelectMixingMode recalls the mixing-start scene for the current bank,
// turning off the channel filter first if active (spec §4.5).
func (c *Controller) SelectMixingMode() {
	c.mu.Lock()
	filtered := c.channelFilter
	c.mu.Unlock()
	if filtered {
		c.ToggleChannelFilter()
	}
	c.callSceneOrHandler(c.scenes.mixingStart.Add(c.currentBank()))
}

// SelectOutput recalls the scene bound to output, remembering it for
// reconfiguration on later bank changes. Loads virtual_right first to
// work around the firmware quirk where the bank LED does not refresh
// otherwise (original_source/dlive/virtual.py:select_output comment).
func (c *Controller) SelectOutput(output channel.ChannelIdentifier) error {
	c.mu.Lock()
	c.lastOutput = output
	mode := c.mode
	c.mu.Unlock()

	if mode != Outputs {
		c.session.ChangeScene(c.scenes.virtualRight)
		c.onSceneChange(c.scenes.virtualRight)
	}
	c.callSceneOrHandler(c.scenes.virtualLeftStart.Add(c.currentBank()))
	return nil
}

// SelectInput recalls the sends-on-fader scene for input.
func (c *Controller) SelectInput(input channel.ChannelIdentifier) error {
	c.mu.Lock()
	c.lastInput = input
	c.mu.Unlock()
	c.callSceneOrHandler(c.scenes.sends)
	return nil
}

func (c *Controller) SelectCustomAuxMode() { c.callSceneOrHandler(c.scenes.customAux) }
func (c *Controller) SelectCustomFXMode()  { c.callSceneOrHandler(c.scenes.customFX) }
func (c *Controller) SelectCustomUtilMode() { c.callSceneOrHandler(c.scenes.customUtil) }

// CycleCustomMode advances aux -> fx -> util -> aux (spec's CLI table).
func (c *Controller) CycleCustomMode() {
	c.mu.Lock()
	c.customCycleIdx = (c.customCycleIdx + 1) % 3
	idx := c.customCycleIdx
	c.mu.Unlock()

	switch idx {
	case 0:
		c.SelectCustomAuxMode()
	case 1:
		c.SelectCustomFXMode()
	case 2:
		c.SelectCustomUtilMode()
	}
}

func (c *Controller) callSceneOrHandler(scene channel.Scene) {
	if cur, ok := c.session.CurrentScene(); ok && cur == scene {
		c.onSceneChange(scene)
		return
	}
	c.session.ChangeScene(scene)
}

// ToggleChannelFilter flips the "only show channels with a nonzero send"
// filter and re-runs whatever (re)configuration function is active.
func (c *Controller) ToggleChannelFilter() {
	c.mu.Lock()
	c.channelFilter = !c.channelFilter
	on := c.channelFilter
	reconfigure := c.reconfigure
	c.mu.Unlock()

	reconfigure()
	c.OnModifierChanged.Emit("filter")
	c.session.Notify(fmt.Sprintf("Channel filter -> %s", onOff(on)))
}

// ToggleSendsTarget flips SendsOnFader's destination group between Aux
// and FX and re-runs the reconfiguration.
func (c *Controller) ToggleSendsTarget() {
	c.mu.Lock()
	c.sendsTarget = !c.sendsTarget
	target := c.sendsTarget
	reconfigure := c.reconfigure
	c.mu.Unlock()

	reconfigure()
	c.OnModifierChanged.Emit("sends_target")
	name := "Aux"
	if target == sendsToFX {
		name = "FX"
	}
	c.session.Notify(fmt.Sprintf("Sends target -> %s", name))
}

func (c *Controller) currentBank() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bank
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// onSceneChange is the scene-change handler driving every mode
// transition (spec §4.5), ported from
// original_source/dlive/virtual.py:LayerController._on_scene_change.
func (c *Controller) onSceneChange(scene channel.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case scene >= c.scenes.mixingStart && scene < c.scenes.mixingStart.Add(6):
		c.selectMode(Mixing)
		c.bank = int(scene - c.scenes.mixingStart)
		c.session.Notify(fmt.Sprintf("Mixing | Bank %d", c.bank+1))
		c.selectChannel(channel.ChannelIdentifier{}, false)
		c.session.ChangeFeedbackSource(nil)

	case scene == c.scenes.virtualRight:
		// ignored: issued as part of selecting a bank on the left side

	case scene >= c.scenes.virtualLeftStart && scene < c.scenes.virtualLeftStart.Add(6):
		c.selectMode(Outputs)
		c.bank = int(scene - c.scenes.virtualLeftStart)
		c.configureOutputsLocked(c.lastOutput)
		c.session.Notify(fmt.Sprintf("%s | Bank %d", c.lastOutput.ShortLabel(), c.bank+1))
		c.selectChannel(c.lastOutput, true)

	case scene == c.scenes.sends:
		c.selectMode(SendsOnFader)
		c.session.Notify(fmt.Sprintf("SendsOnFader | %s", c.lastInput.ShortLabel()))
		c.selectChannel(c.lastInput, true)
		c.configureSendsOnFaderLocked(c.lastInput)

	case scene == c.scenes.customAux:
		c.selectMode(CustomAux)
		c.session.Notify("Custom | AUX")
		c.selectChannel(channel.ChannelIdentifier{}, false)
		c.session.ChangeFeedbackSource(nil)

	case scene == c.scenes.customFX:
		c.selectMode(CustomFX)
		c.session.Notify("Custom | FX")
		c.selectChannel(channel.ChannelIdentifier{}, false)
		c.session.ChangeFeedbackSource(nil)

	case scene == c.scenes.customUtil:
		c.selectMode(CustomUtil)
		c.session.Notify("Custom | UTIL")
		c.selectChannel(channel.ChannelIdentifier{}, false)
		c.session.ChangeFeedbackSource(nil)
	}
}

func (c *Controller) selectMode(mode Mode) {
	if c.mode != mode {
		c.mode = mode
		c.OnModeChanged.Emit(mode)
	}
}

func (c *Controller) selectChannel(id channel.ChannelIdentifier, has bool) {
	if c.hasSelection != has || c.selected != id {
		c.selected = id
		c.hasSelection = has
		c.OnSelectionChanged.Emit(id)
	}
}

// configureOutputsLocked binds strips 0..14 to send levels from the
// bank-windowed (or fully filtered) set of input channels toward
// output, strip 15 to output's own master level (spec §4.5; ported
// bullet-for-bullet from
// original_source/dlive/virtual.py:_configure_outputs).
func (c *Controller) configureOutputsLocked(output channel.ChannelIdentifier) {
	c.reconfigure = func() { c.mu.Lock(); c.configureOutputsLocked(output); c.mu.Unlock() }

	inputs := c.session.InputIDs()
	maxIndex := len(inputs) - 1

	var from, to int
	if c.channelFilter {
		from, to = 0, maxIndex
	} else {
		from = min(c.bank*16, maxIndex)
		to = min(from+14, maxIndex)
	}

	show := func(id channel.ChannelIdentifier) bool {
		ch, ok := c.session.Channel(id)
		if !ok {
			return false
		}
		label, _ := ch.Label.Current()
		if !label.HasName() {
			return false
		}
		if !c.channelFilter {
			return true
		}
		sv, ok := c.session.SendValue(id, output)
		if !ok {
			return false
		}
		level, ok := sv.Current()
		return ok && level != channel.Off
	}

	vIndex := 0
	for i := from; i <= to && vIndex < 15; i++ {
		if show(inputs[i]) {
			c.strips[vIndex].BindSend(inputs[i], output, true)
			vIndex++
		}
	}
	for i := vIndex; i < 15; i++ {
		c.strips[i].TieToZero()
	}

	c.session.ChangeFeedbackSource(&output)
	if len(c.strips) > 15 {
		c.strips[15].BindMaster(output)
	}
}

// configureSendsOnFaderLocked binds every visible strip to one of
// input's send levels toward each channel in the currently selected
// target group (Aux or FX), ported from
// original_source/dlive/virtual.py:_configure_sends_on_fader.
func (c *Controller) configureSendsOnFaderLocked(input channel.ChannelIdentifier) {
	c.reconfigure = func() { c.mu.Lock(); c.configureSendsOnFaderLocked(input); c.mu.Unlock() }

	var dests []channel.ChannelIdentifier
	if c.sendsTarget == sendsToAux {
		dests = c.session.AuxIDs()
	} else {
		dests = append(append([]channel.ChannelIdentifier{}, c.session.FXIDs()...), c.session.ExternalFXIDs()...)
	}

	show := func(id channel.ChannelIdentifier) bool {
		ch, ok := c.session.Channel(id)
		if !ok {
			return false
		}
		label, _ := ch.Label.Current()
		if !label.HasName() {
			return false
		}
		if !c.channelFilter {
			return true
		}
		sv, ok := c.session.SendValue(input, id)
		if !ok {
			return false
		}
		level, ok := sv.Current()
		return ok && level != channel.Off
	}

	vIndex := 0
	for _, dest := range dests {
		if vIndex == len(c.strips) {
			break
		}
		if show(dest) {
			c.strips[vIndex].BindSend(input, dest, false)
			vIndex++
		}
	}
	for i := vIndex; i < len(c.strips)-1 && i < 15; i++ {
		c.strips[i].TieToZero()
	}

	c.session.ChangeFeedbackSource(nil)
}

// ClearSDCA restores every affected input's sends to their pre-S-DCA
// baseline and exits S-DCA mode, ported from
// original_source/state/layers.py:clear_s_dca.
func (c *Controller) ClearSDCA() {
	c.mu.Lock()
	if !c.sdcaActive {
		c.mu.Unlock()
		return
	}
	c.strips[0].Restore()
	c.strips[0].Accept()
	c.sdcaActive = false
	for _, id := range c.session.InputIDs() {
		c.session.ChangeSelect(id, false)
	}
	for _, st := range c.strips {
		st.TieToZero()
	}
	wasSDCA := c.mode == SDCA
	selected := c.selected
	c.mu.Unlock()

	if wasSDCA {
		c.SelectMixingMode()
	} else {
		c.OnSelectionChanged.Emit(selected)
	}
}

// ToggleSDCAMode enters or leaves S-DCA selection mode (spec §4.5,
// merged from original_source/state/layers.py:toggle_s_dca_mode).
// Entering clears the selection, ties every strip to zero and recalls
// the virtual-left start scene; send baselines are snapshotted later,
// when ToggleSDCAChannel binds strip 0.
func (c *Controller) ToggleSDCAMode() {
	c.mu.Lock()
	if c.mode == SDCA {
		c.mu.Unlock()
		c.SelectMixingMode()
		return
	}
	c.selectChannel(channel.ChannelIdentifier{}, false)

	if !c.sdcaActive {
		c.sdcaActive = true
	}
	c.selectMode(SDCA)
	for _, st := range c.strips {
		st.TieToZero()
	}
	c.mu.Unlock()

	c.session.ChangeScene(c.scenes.virtualLeftStart)
}

// ToggleSDCAChannel flips channel's selection within the active S-DCA
// set and rebinds every strip to the fresh affected-channel list
// (never the stale one from the previous binding — spec §9(b)).
func (c *Controller) ToggleSDCAChannel(ch channel.ChannelIdentifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != SDCA {
		return fmt.Errorf("layer: not in S-DCA mode")
	}

	channelObj, ok := c.session.Channel(ch)
	if !ok {
		return fmt.Errorf("layer: unknown channel %v", ch)
	}
	selected, _ := channelObj.Select.Current()
	c.session.ChangeSelect(ch, !selected)

	affected := c.affectedSDCAChannelsLocked()
	dest := c.lastOutput
	for i, st := range c.strips {
		if i == 0 {
			st.BindSDCA(affected, dest)
		} else {
			st.TieToZero()
		}
	}
	return nil
}

func (c *Controller) affectedSDCAChannelsLocked() []channel.ChannelIdentifier {
	var affected []channel.ChannelIdentifier
	for _, id := range c.session.InputIDs() {
		ch, ok := c.session.Channel(id)
		if !ok {
			continue
		}
		if selected, _ := ch.Select.Current(); selected {
			affected = append(affected, id)
		}
	}
	return affected
}

