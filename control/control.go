// Package control defines the interfaces external collaborators (the
// streamdeck renderer, the interactive REPL) are built against: what
// the core exposes (channel-change notifications, selection snapshots,
// the single-line CLI surface) and what it consumes (key-press events).
// Grounded on arpad's own boundary convention of small leaf interfaces
// (devices.BaseTypes, the bindable/setable generics in
// mode/modemanager.go) rather than one god-interface.
package control

import (
	"github.com/m-vo/psurface/internal/channel"
)

// KeyEvent is a single key-press/release reported by an external
// surface, identified by the console channel it was bound to.
type KeyEvent struct {
	Channel channel.ChannelIdentifier
	Pressed bool
}

// ChannelSnapshot is the read-only view of a channel's tracked state an
// external renderer needs, resolved at the instant Snapshot is called
// rather than held live.
type ChannelSnapshot struct {
	ID       channel.ChannelIdentifier
	Label    channel.Label
	Colour   channel.Colour
	Mute     bool
	Level    channel.Level
	Selected bool
}

// Core is the surface external collaborators are built against: the
// CLI commands from spec.md §6, plus the notification/snapshot/input
// contracts from spec.md §1.
type Core interface {
	// CLI surface (spec.md §6), one method per single-letter command.
	Help() string
	Dump() string
	ForceResync() error
	RecallScene(n int) error
	SelectInput(n int) error
	SelectOutput(n int) error
	SelectMixingMode()
	ToggleChannelFilter()
	ToggleSendsTarget()
	CycleCustomMode()

	// Consumed input.
	HandleKeyEvent(KeyEvent)

	// Produced notifications.
	OnStatus(func(string))
	OnChannelChanged(func(channel.ChannelIdentifier))
	OnSelectionChanged(func(channel.ChannelIdentifier))

	// Snapshot resolves a channel's current tracked state for a
	// renderer to draw, false if id is not a known channel.
	Snapshot(id channel.ChannelIdentifier) (ChannelSnapshot, bool)
}

// helpText is the `?` command's static reply (spec.md §6's CLI table).
const helpText = `? help  d dump  r resync
s<n> recall scene n
i<n> select input n (sends-on-fader)
o<n> select output n (outputs mode)
m mixing mode  f toggle channel filter
x toggle sends target (aux/fx)  l cycle custom mode (aux->fx->util)`
