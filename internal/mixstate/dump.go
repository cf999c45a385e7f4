package mixstate

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/m-vo/psurface/internal/channel"
)

// dump renders every channel's current attribute values. No
// third-party table-formatting library appears anywhere in the example
// pack (the original uses Python's `tabulate`); text/tabwriter is the
// standard-library equivalent and is used here for that reason alone.
func dump(s *Session) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tLABEL\tCOLOUR\tMUTE\tLEVEL\tSELECTED")

	for _, id := range orderedIDs(s) {
		c := s.channels[id]
		label, _ := c.Label.Current()
		colour, _ := c.Colour.Current()
		mute, _ := c.Mute.Current()
		level, _ := c.Level.Current()
		selected, _ := c.Select.Current()
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%v\n", id.ShortLabel(), label, colour, mute, level, selected)
	}

	w.Flush()
	return sb.String()
}

func orderedIDs(s *Session) []channel.ChannelIdentifier {
	ids := s.allChannelIDs()
	// Stable-ish ordering: bank, then canonical index, for a readable dump.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if a.Bank > b.Bank || (a.Bank == b.Bank && a.CanonicalIndex > b.CanonicalIndex) {
				ids[j-1], ids[j] = ids[j], ids[j-1]
			} else {
				break
			}
		}
	}
	return ids
}
