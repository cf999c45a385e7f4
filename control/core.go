package control

import (
	"fmt"

	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/layer"
	"github.com/m-vo/psurface/internal/mixstate"
)

// core is the concrete Core, wiring the CLI surface onto a Session and
// its Controller. One instance per process, constructed after Sync has
// completed (spec.md §4.4's startup dance runs before the core is
// handed to any external collaborator).
type core struct {
	session *mixstate.Session
	layer   *layer.Controller

	mixingStart channel.Scene
}

// New builds a Core over an already-synced session and its layer
// controller, and the fixed mixing-start scene used by ForceResync.
func New(session *mixstate.Session, l *layer.Controller, mixingStart channel.Scene) Core {
	return &core{session: session, layer: l, mixingStart: mixingStart}
}

func (c *core) Help() string { return helpText }

func (c *core) Dump() string { return c.session.Dump() }

// ForceResync re-runs the startup sync dance (the `r` command), the
// only recovery path spec.md §7 offers for "Not synced | Try again".
func (c *core) ForceResync() error {
	return c.session.Sync(c.mixingStart)
}

func (c *core) RecallScene(n int) error {
	scene, err := channel.NewScene(n)
	if err != nil {
		return err
	}
	return c.session.ChangeScene(scene)
}

func (c *core) SelectInput(n int) error {
	id, ok := inputByCanonicalIndex(c.session, n)
	if !ok {
		return fmt.Errorf("control: no input %d", n)
	}
	return c.layer.SelectInput(id)
}

func (c *core) SelectOutput(n int) error {
	id, ok := outputByCanonicalIndex(c.session, n)
	if !ok {
		return fmt.Errorf("control: no output %d", n)
	}
	return c.layer.SelectOutput(id)
}

func (c *core) SelectMixingMode()    { c.layer.SelectMixingMode() }
func (c *core) ToggleChannelFilter() { c.layer.ToggleChannelFilter() }
func (c *core) ToggleSendsTarget()   { c.layer.ToggleSendsTarget() }
func (c *core) CycleCustomMode()     { c.layer.CycleCustomMode() }

// HandleKeyEvent routes a key press into S-DCA channel toggling when
// the layer is in S-DCA mode; outside S-DCA, key presses are an
// external-surface concern (button LED/mode handling) the core has no
// opinion on, per spec.md §1's scope boundary.
func (c *core) HandleKeyEvent(evt KeyEvent) {
	if !evt.Pressed {
		return
	}
	if c.layer.Mode() != layer.SDCA {
		return
	}
	if err := c.layer.ToggleSDCAChannel(evt.Channel); err != nil {
		c.session.Notify(err.Error())
	}
}

func (c *core) OnStatus(fn func(string)) {
	c.session.StatusEvent.Subscribe(fn)
}

func (c *core) OnChannelChanged(fn func(channel.ChannelIdentifier)) {
	c.session.ChannelUpdateEvt.Subscribe(fn)
}

func (c *core) OnSelectionChanged(fn func(channel.ChannelIdentifier)) {
	c.layer.OnSelectionChanged.Subscribe(fn)
}

func (c *core) Snapshot(id channel.ChannelIdentifier) (ChannelSnapshot, bool) {
	ch, ok := c.session.Channel(id)
	if !ok {
		return ChannelSnapshot{}, false
	}
	label, _ := ch.Label.Current()
	colour, _ := ch.Colour.Current()
	mute, _ := ch.Mute.Current()
	level, _ := ch.Level.Current()

	selected, hasSelection := c.layer.SelectedChannel()

	return ChannelSnapshot{
		ID:       id,
		Label:    label,
		Colour:   colour,
		Mute:     mute,
		Level:    level,
		Selected: hasSelection && selected == id,
	}, true
}

// inputByCanonicalIndex and outputByCanonicalIndex translate the CLI's
// 0-based n argument into a ChannelIdentifier, the console-agnostic
// indexing spec.md's `i<n>`/`o<n>` commands operate on.
func inputByCanonicalIndex(s *mixstate.Session, n int) (channel.ChannelIdentifier, bool) {
	ids := s.InputIDs()
	if n < 0 || n >= len(ids) {
		return channel.ChannelIdentifier{}, false
	}
	return ids[n], true
}

func outputByCanonicalIndex(s *mixstate.Session, n int) (channel.ChannelIdentifier, bool) {
	ids := s.OutputIDs()
	if n < 0 || n >= len(ids) {
		return channel.ChannelIdentifier{}, false
	}
	return ids[n], true
}
