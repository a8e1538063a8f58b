package onboard

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/CodedInternet/gorover/onboard/errors"
	"github.com/CodedInternet/gorover/onboard/hardware"
	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/CodedInternet/gorover/onboard/motion"
	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"
)

const (
	CONFIG_VERSION = "~1.0"

	CYCLE_DEFAULT  = 10 * time.Millisecond
	REPEAT_DEFAULT = 150 * time.Millisecond
	SAFETY_DEFAULT = 500 * time.Millisecond
)

// LoopConfig holds the timing of the control loop. Relay toggles need the
// shoulder button held for twice the safety time.
type LoopConfig struct {
	Cycle  time.Duration `yaml:"cycle"`
	Repeat time.Duration `yaml:"repeat"`
	Safety time.Duration `yaml:"safety"`
}

// JoystickConfig mapping entries are decoded over DualShockMapping, so a file
// only needs to name what differs.
type JoystickConfig struct {
	Device  string                `yaml:"device"`
	Mapping input.JoystickMapping `yaml:"mapping"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QOS      byte   `yaml:"qos"`
}

type RoverConfig struct {
	Version  string               `yaml:"version"`
	Serial   hardware.MSDEMConfig `yaml:"serial"`
	Motion   motion.Config        `yaml:"motion"`
	Presets  motion.Presets       `yaml:"presets"`
	Stick    input.Classifier     `yaml:"stick"`
	Loop     LoopConfig           `yaml:"loop"`
	Relays   hardware.RelayConfig `yaml:"relays"`
	Joystick JoystickConfig       `yaml:"joystick"`
	MQTT     MQTTConfig           `yaml:"mqtt"`
}

// DefaultConfig matches the rover as built: MSD_EM drivers on the USB serial
// adapter and four active low light relays.
func DefaultConfig() RoverConfig {
	m := motion.DefaultConfig()
	return RoverConfig{
		Version: "1.0.0",
		Serial: hardware.MSDEMConfig{
			Address:  "/dev/ttyUSB0",
			BaudRate: hardware.BAUD_DEFAULT,
			Timeout:  hardware.TIMEOUT_DEFAULT,
			Settle:   hardware.SETTLE_DEFAULT,
			Nodes:    hardware.DefaultNodes,
		},
		Motion:  m,
		Presets: motion.DefaultPresets(),
		Stick:   input.NewClassifier(m.Step),
		Loop: LoopConfig{
			Cycle:  CYCLE_DEFAULT,
			Repeat: REPEAT_DEFAULT,
			Safety: SAFETY_DEFAULT,
		},
		Relays: hardware.RelayConfig{
			Pins:      []int{14, 17, 27, 22},
			ActiveLow: true,
		},
		Joystick: JoystickConfig{
			Mapping: input.DualShockMapping(),
		},
		MQTT: MQTTConfig{
			ClientID: "gorover",
			Topic:    "gorover/state",
		},
	}
}

func LoadConfig(filename string) (config RoverConfig, err error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("unable to read config %s: %v", filename, err)
	}
	return ParseConfig(data)
}

// ParseConfig reads YAML on top of DefaultConfig, so a file only needs the
// values that differ.
func ParseConfig(data []byte) (config RoverConfig, err error) {
	config = DefaultConfig()
	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("unable to unmarshal config: %v", err)
	}
	config.Stick.Step = config.Motion.Step

	err = config.Validate()
	return
}

func (c RoverConfig) Validate() error {
	version, err := semver.NewVersion(c.Version)
	if err != nil {
		return errors.ConfigurationError{Field: "version", Reason: err.Error()}
	}
	constraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return errors.ConfigurationError{
			Field:  "version",
			Reason: fmt.Sprintf("%s does not satisfy %s", c.Version, CONFIG_VERSION),
		}
	}

	if err := motion.Validate(c.Motion, c.Presets); err != nil {
		return err
	}

	if c.Serial.BaudRate < hardware.BAUD_MIN || c.Serial.BaudRate > hardware.BAUD_MAX {
		return errors.ConfigurationError{
			Field:  "serial.baud",
			Reason: fmt.Sprintf("%d outside %d-%d", c.Serial.BaudRate, hardware.BAUD_MIN, hardware.BAUD_MAX),
		}
	}

	n := c.Serial.Nodes
	if n.Both == n.Left || n.Both == n.Right || n.Left == n.Right {
		return errors.ConfigurationError{Field: "serial.nodes", Reason: "must address three distinct nodes"}
	}

	if c.Loop.Cycle <= 0 || c.Loop.Repeat <= 0 || c.Loop.Safety <= 0 {
		return errors.ConfigurationError{Field: "loop", Reason: "durations must be positive"}
	}
	if c.Loop.Safety < c.Loop.Repeat {
		return errors.ConfigurationError{Field: "loop.safety", Reason: "must not be shorter than the repeat interval"}
	}

	js := c.Joystick.Mapping
	if js.Stick == 0 || js.DPad == 0 || js.Stick == js.DPad {
		return errors.ConfigurationError{Field: "joystick.mapping", Reason: "stick and dpad need two distinct hats, counted from 1"}
	}

	if c.Stick.DeadZone < 0 || c.Stick.TierLow <= c.Stick.DeadZone || c.Stick.TierMid <= c.Stick.TierLow {
		return errors.ConfigurationError{Field: "stick", Reason: "need 0 <= dead_zone < tier_low < tier_mid"}
	}

	return nil
}
