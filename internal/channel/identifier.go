package channel

import "fmt"

// ChannelIdentifier uniquely identifies a channel for the lifetime of
// the process. Value-equal and hashable (a plain comparable struct), so
// it can key a Go map directly.
type ChannelIdentifier struct {
	Bank           Bank
	CanonicalIndex int
}

func New(bank Bank, canonicalIndex int) ChannelIdentifier {
	return ChannelIdentifier{Bank: bank, CanonicalIndex: canonicalIndex}
}

// FromWire converts a wire (bankOffset, channelOffset) pair into a
// ChannelIdentifier. The conversion is partial: not every pair is legal.
func FromWire(bankOffset, channelOffset byte) (ChannelIdentifier, error) {
	return fromWire(bankOffset, channelOffset)
}

// ToWire converts a ChannelIdentifier to its (bankOffset, channelOffset)
// wire pair, without the configured MIDI bank offset applied.
func (c ChannelIdentifier) ToWire() (bankOffset, channelOffset byte, err error) {
	bo, ok := bankOffsetOf(c.Bank)
	if !ok {
		return 0, 0, fmt.Errorf("channel: unmapped bank %v", c.Bank)
	}
	start, _ := chanOffsetStartOf(c.Bank)
	co := int(start) + c.CanonicalIndex
	if co > 0x7F {
		return 0, 0, fmt.Errorf("channel: %v exceeds wire channel-offset range", c)
	}
	return bo, byte(co), nil
}

// ShortLabel renders "<bank short name> <canonical_index+1>", as used in
// status notifications and the session dump table. Grounded on
// original_source/dlive/entity.py:ChannelIdentifier.short_label.
func (c ChannelIdentifier) ShortLabel() string {
	return fmt.Sprintf("%s %d", c.Bank.ShortName(), c.CanonicalIndex+1)
}

func (c ChannelIdentifier) String() string {
	return c.ShortLabel()
}
