// Command psurfaced wires the control-plane core to a real mixrack:
// load config, dial the two independent TCP connections, build the
// session and layer controller, run the startup sync dance, and hand
// off control.Core to whatever REPL or surface is driving it.
//
// Analogue of apps/selah/main.go, minus the xtouch/reaper device layer
// this domain has no use for.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/m-vo/psurface/control"
	"github.com/m-vo/psurface/internal/channel"
	"github.com/m-vo/psurface/internal/config"
	"github.com/m-vo/psurface/internal/layer"
	"github.com/m-vo/psurface/internal/mixstate"
	"github.com/m-vo/psurface/internal/transport"
	"github.com/m-vo/psurface/logging"
)

var log *slog.Logger

func init() {
	log = logging.Get(logging.APP)
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var creds *transport.Credentials
	if cfg.DLive.Auth != nil {
		creds = &transport.Credentials{Profile: cfg.DLive.Auth.Profile, Password: cfg.DLive.Auth.Password}
	}
	capacity := cfg.DLive.Timing.OutboundCapacityLimit

	outPort, err := transport.Dial(cfg.DLive.IP, creds, capacity)
	if err != nil {
		log.Error("failed to dial outbound connection", "error", err)
		os.Exit(1)
	}
	inPort, err := transport.Dial(cfg.DLive.IP, creds, capacity)
	if err != nil {
		log.Error("failed to dial inbound connection", "error", err)
		os.Exit(1)
	}

	top := mixstate.TopologyFromConfig(cfg.Control.Tracking)
	session := mixstate.New(top, byte(cfg.DLive.MIDIBankOffset1-1), outPort, inPort)
	session.StatusEvent.Subscribe(func(msg string) { log.Info(msg) })
	session.Listen()

	mixingStart, err := channel.NewScene(cfg.Control.Scenes.MixingStart1 - 1)
	if err != nil {
		log.Error("invalid mixing_start scene in config", "error", err)
		os.Exit(1)
	}
	if err := session.Sync(mixingStart); err != nil {
		log.Error("startup sync failed", "error", err)
		os.Exit(1)
	}

	l := layer.New(session, top.VirtualStripIDs, cfg.Control.Scenes)
	core := control.New(session, l, mixingStart)

	log.Info("psurfaced ready", "strips", len(top.VirtualStripIDs))
	runREPL(core)
}

// runREPL is a minimal line-oriented driver for the CLI surface
// (spec.md §6); a real deployment's interactive REPL and streamdeck
// renderer are external collaborators built against control.Core the
// same way this one is.
func runREPL(core control.Core) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if err := dispatch(core, line); err != nil {
			fmt.Println(err)
		}
	}
}

func dispatch(core control.Core, line string) error {
	switch line[0] {
	case '?':
		fmt.Println(core.Help())
	case 'd':
		fmt.Println(core.Dump())
	case 'r':
		return core.ForceResync()
	case 's':
		n, err := parseArg(line)
		if err != nil {
			return err
		}
		return core.RecallScene(n)
	case 'i':
		n, err := parseArg(line)
		if err != nil {
			return err
		}
		return core.SelectInput(n)
	case 'o':
		n, err := parseArg(line)
		if err != nil {
			return err
		}
		return core.SelectOutput(n)
	case 'm':
		core.SelectMixingMode()
	case 'f':
		core.ToggleChannelFilter()
	case 'x':
		core.ToggleSendsTarget()
	case 'l':
		core.CycleCustomMode()
	default:
		return fmt.Errorf("unknown command %q, try ?", line)
	}
	return nil
}

func parseArg(line string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(line[1:], "%d", &n); err != nil {
		return 0, fmt.Errorf("expected a number after %q: %w", line[:1], err)
	}
	return n, nil
}
