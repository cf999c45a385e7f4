package mixstate

import (
	"sync"

	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/tracked"
)

// Kind distinguishes which capabilities a Channel carries. Re-expresses
// the original's Channel/InputChannel/OutputChannel/MultiChannel
// inheritance (spec §9 "Polymorphism") as a capability flag rather than
// a class hierarchy: every Channel has the five base tracked values;
// Input and Multi additionally carry a send-level map.
type Kind int

const (
	KindOutput Kind = iota
	KindInput
	KindMulti // FX returns: routes both ways, original's MultiChannel(InputChannel, OutputChannel)
)

// Channel is the per-channel bundle of tracked values (spec §3 "Channel
// state"). Send levels are hydrated on demand: construction allocates
// only an empty map (input-like channels only), and each destination's
// tracked value is created on its first access through Send.
type Channel struct {
	ID   channel.ChannelIdentifier
	Kind Kind

	Label  *tracked.Value[channel.Label]
	Colour *tracked.Immediate[channel.Colour]
	Mute   *tracked.Value[bool]
	Level  *tracked.Value[channel.Level]
	Select *tracked.Value[bool]

	sendsMu sync.Mutex
	sends   map[channel.ChannelIdentifier]*tracked.Value[channel.Level]
}

// IsInputLike reports whether this channel can carry outgoing sends.
func (c *Channel) IsInputLike() bool {
	return c.Kind == KindInput || c.Kind == KindMulti
}

func newChannel(reg *tracked.Registry, id channel.ChannelIdentifier, kind Kind, onLabel, onColour, onMute, onLevel, onSelect func()) *Channel {
	c := &Channel{
		ID:     id,
		Kind:   kind,
		Label:  tracked.Track(reg, tracked.New[channel.Label](nil, func(channel.Label) { onLabel() })),
		Colour: tracked.Track(reg, tracked.NewImmediate[channel.Colour](func(channel.Colour) { onColour() })),
		Mute:   tracked.Track(reg, tracked.New[bool](nil, func(bool) { onMute() })),
		Level:  tracked.Track(reg, tracked.New[channel.Level](nil, func(channel.Level) { onLevel() })),
		Select: tracked.Track(reg, tracked.New[bool](nil, func(bool) { onSelect() })),
	}
	if c.IsInputLike() {
		c.sends = make(map[channel.ChannelIdentifier]*tracked.Value[channel.Level])
	}
	return c
}

// Send returns the tracked send level toward dest, hydrating it on
// first access. Only valid for input-like channels.
func (c *Channel) Send(reg *tracked.Registry, dest channel.ChannelIdentifier, onIdle func(dest channel.ChannelIdentifier)) *tracked.Value[channel.Level] {
	c.sendsMu.Lock()
	defer c.sendsMu.Unlock()
	if v, ok := c.sends[dest]; ok {
		return v
	}
	v := tracked.Track(reg, tracked.New[channel.Level](nil, func(channel.Level) {
		if onIdle != nil {
			onIdle(dest)
		}
	}))
	c.sends[dest] = v
	return v
}

// Sends returns a snapshot of the currently-hydrated send map. Channels
// that were never read or hydrated return nil/empty, per the
// lazy-hydration invariant.
func (c *Channel) Sends() map[channel.ChannelIdentifier]*tracked.Value[channel.Level] {
	c.sendsMu.Lock()
	defer c.sendsMu.Unlock()
	snap := make(map[channel.ChannelIdentifier]*tracked.Value[channel.Level], len(c.sends))
	for k, v := range c.sends {
		snap[k] = v
	}
	return snap
}

// BackupSends supports S-DCA mode (spec §4.5): it snapshots every
// currently-hydrated send level that has resolved; sends with no
// resolved value are left out of the snapshot.
type SendBackup map[channel.ChannelIdentifier]channel.Level

func (c *Channel) BackupSends() SendBackup {
	c.sendsMu.Lock()
	defer c.sendsMu.Unlock()
	b := make(SendBackup, len(c.sends))
	for dest, v := range c.sends {
		if cur, ok := v.Current(); ok {
			b[dest] = cur
		}
	}
	return b
}
