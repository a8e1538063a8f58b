package comms

import (
	"fmt"
	"strings"

	"github.com/CodedInternet/gorover/onboard"
	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/CodedInternet/gorover/onboard/motion"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json jsoniter.API = jsoniter.ConfigCompatibleWithStandardLibrary

// Cmd is a single message from the dashboard, for example
// {"cmd":"pressed","value":"UP"} or {"cmd":"stick","x":128,"y":0}.
type Cmd struct {
	Cmd   string `json:"cmd"`
	Value string `json:"value,omitempty"`
	X     uint8  `json:"x,omitempty"`
	Y     uint8  `json:"y,omitempty"`
}

// Device is the part of the rover the conductor drives.
type Device interface {
	Submit(cmd onboard.Command) error
}

type ConductorInterface interface {
	ProcessCommand(cmd Cmd) error
	Reset()
}

// Conductor turns dashboard messages into gamepad input on a Remote source,
// or into queued rover commands for the things a gamepad can't express.
type Conductor struct {
	Device Device
	Remote *input.Remote
}

func NewConductor(device Device, remote *input.Remote) *Conductor {
	return &Conductor{Device: device, Remote: remote}
}

func DecodeCmd(msg []byte) (cmd Cmd, err error) {
	if err = json.Unmarshal(msg, &cmd); err != nil {
		return cmd, fmt.Errorf("invalid command: %v", err)
	}
	if cmd.Cmd == "" {
		err = fmt.Errorf("invalid command: missing cmd")
	}
	return
}

func (c *Conductor) ProcessCommand(cmd Cmd) error {
	log.WithFields(log.Fields{"cmd": cmd.Cmd, "value": cmd.Value}).Debug("dashboard command")

	switch cmd.Cmd {
	case "pressed", "released":
		b, err := input.ParseButton(cmd.Value)
		if err != nil {
			return err
		}
		if cmd.Cmd == "pressed" {
			c.Remote.Press(b)
		} else {
			c.Remote.Release(b)
		}

	case "stick":
		c.Remote.SetStick(input.Stick{X: cmd.X, Y: cmd.Y})

	case "speed":
		if cmd.Value == "" {
			return c.Device.Submit(onboard.Command{Kind: onboard.CmdTogglePreset})
		}
		preset, err := motion.ParsePreset(cmd.Value)
		if err != nil {
			return err
		}
		return c.Device.Submit(onboard.Command{Kind: onboard.CmdPreset, Preset: preset})

	case "light":
		if strings.EqualFold(cmd.Value, "off") {
			return c.Device.Submit(onboard.Command{Kind: onboard.CmdLightsOff})
		}
		b, err := input.ParseButton(cmd.Value)
		if err != nil {
			return err
		}
		i, ok := onboard.LightIndex(b)
		if !ok {
			return fmt.Errorf("%v does not switch a light", b)
		}
		return c.Device.Submit(onboard.Command{Kind: onboard.CmdLight, Relay: i})

	case "move":
		in, err := ParseMove(cmd.Value)
		if err != nil {
			return err
		}
		return c.Device.Submit(onboard.Command{Kind: onboard.CmdMove, Intent: in})

	case "stop":
		c.Remote.Reset()
		return c.Device.Submit(onboard.Command{Kind: onboard.CmdStop})

	default:
		return fmt.Errorf("unable to process command %q", cmd.Cmd)
	}

	return nil
}

// Reset lets go of everything, which leaves the watchdog to stop the rover.
func (c *Conductor) Reset() {
	c.Remote.Reset()
}

// ParseMove reads the short motor test names: f, b, lf, lb, rf and rb. The
// magnitude is left at zero so the rover uses a single step.
func ParseMove(name string) (in input.Intent, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "f":
		in = input.Intent{Kind: input.MoveForward, Forward: true}
	case "b":
		in = input.Intent{Kind: input.MoveBackward}
	case "lf":
		in = input.Intent{Kind: input.TurnLeft, Forward: true}
	case "lb":
		in = input.Intent{Kind: input.TurnLeft}
	case "rf":
		in = input.Intent{Kind: input.TurnRight, Forward: true}
	case "rb":
		in = input.Intent{Kind: input.TurnRight}
	default:
		err = fmt.Errorf("unknown move %q", name)
	}
	return
}
