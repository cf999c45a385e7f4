// Package config loads the YAML document the core's constructors accept
// (spec §6): dlive connection settings, streamdeck device serials, and
// the control-tracking/scenes topology. Loading itself is out of the
// core's functional scope per spec §1; only the parsed Config type is.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DLive      DLive      `yaml:"dlive"`
	Streamdeck Streamdeck `yaml:"streamdeck"`
	Control    Control    `yaml:"control"`
}

type DLive struct {
	IP              string `yaml:"ip"`
	MIDIBankOffset1 int    `yaml:"midi_bank_offset"` // 1-based in the document
	Auth            *Auth  `yaml:"auth"`
	Timing          Timing `yaml:"timing"`
}

type Auth struct {
	Profile  string `yaml:"profile"`
	Password string `yaml:"password"`
}

// Timing carries the outbound rate-limiter capacity; present in
// original_source/dlive/connection.py's App.config.timing but dropped
// from spec.md's prose.
type Timing struct {
	OutboundCapacityLimit int `yaml:"outbound_capacity_limit"`
}

type Streamdeck struct {
	Devices []string `yaml:"devices"`
}

type Control struct {
	Tracking Tracking `yaml:"tracking"`
	Scenes   Scenes   `yaml:"scenes"`
}

// Tracking drives the channel topology construction (spec §4.4). The
// indices (fields suffixed 1) are 1-based in the document; Load keeps
// them as written and mixstate.TopologyFromConfig converts them to
// 0-based. Counts are plain counts.
type Tracking struct {
	InputCount             int `yaml:"input_count"`
	MonoAuxCount           int `yaml:"mono_aux_count"`
	StereoAuxCount         int `yaml:"stereo_aux_count"`
	MonoFXCount            int `yaml:"mono_fx_count"`
	StereoFXCount          int `yaml:"stereo_fx_count"`
	ExternalFXStart1       int `yaml:"external_fx_block_start"`
	ExternalFXCount        int `yaml:"external_fx_count"`
	VirtualStripStart1     int `yaml:"virtual_strip_start"`
	FeedbackMatrixIndex1   int `yaml:"feedback_matrix_index"`
	TalkToMonitorIndex1    int `yaml:"talk_to_monitor_index"`
	TalkToStageIndex1      int `yaml:"talk_to_stage_index"`
}

// Scenes is the fixed scene map the layer controller is built from
// (spec §4.5), 1-based in the document.
type Scenes struct {
	MixingStart1      int `yaml:"mixing_start"`
	VirtualLeftStart1 int `yaml:"virtual_left_start"`
	VirtualRight1     int `yaml:"virtual_right"`
	Sends1            int `yaml:"sends"`
	CustomAux1        int `yaml:"custom_aux"`
	CustomFX1         int `yaml:"custom_fx"`
	CustomUtil1       int `yaml:"custom_util"`
}

// Load reads and parses the document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &c, nil
}
