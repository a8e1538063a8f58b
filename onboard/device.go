package onboard

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/CodedInternet/gorover/onboard/broadcast"
	"github.com/CodedInternet/gorover/onboard/hardware"
	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/CodedInternet/gorover/onboard/motion"
	log "github.com/sirupsen/logrus"
)

const COMMAND_QUEUE = 16

var (
	ErrBusy = errors.New("command queue is full")
)

// Relays is the light bank as seen by the rover. hardware.RelayBank
// satisfies it.
type Relays interface {
	Len() int
	Toggle(i int) (bool, error)
	AllOff()
	States() []bool
	Close() error
}

// State is what the rover publishes after every cycle that changed something.
type State struct {
	motion.State
	Relays   []bool `json:"relays"`
	Twist    Twist  `json:"twist"`
	Stopping bool   `json:"stopping"`
}

func (s State) equal(o State) bool {
	if s.State != o.State || s.Twist != o.Twist || s.Stopping != o.Stopping || len(s.Relays) != len(o.Relays) {
		return false
	}
	for i := range s.Relays {
		if s.Relays[i] != o.Relays[i] {
			return false
		}
	}
	return true
}

type CommandKind uint8

const (
	CmdMove CommandKind = iota
	CmdStop
	CmdPreset
	CmdTogglePreset
	CmdLight
	CmdLightsOff
)

func (k CommandKind) String() string {
	switch k {
	case CmdMove:
		return "move"
	case CmdStop:
		return "stop"
	case CmdPreset:
		return "preset"
	case CmdTogglePreset:
		return "toggle-preset"
	case CmdLight:
		return "light"
	case CmdLightsOff:
		return "lights-off"
	}
	return fmt.Sprintf("command(%d)", uint8(k))
}

// Command is a request from the shell or the http api. Commands are queued
// and carried out by the control loop so the motion controller only ever has
// one owner.
type Command struct {
	Kind   CommandKind
	Intent input.Intent
	Preset motion.Preset
	Relay  int
}

// Rover ties the gamepad input, the motion controller and the lights
// together.
type Rover struct {
	config     RoverConfig
	motion     *motion.Controller
	channel    hardware.Channel
	relays     Relays
	source     input.Source
	classifier input.Classifier
	snapshot   *input.Snapshot
	loop       LoopState

	commands chan Command
	states   *broadcast.Broadcaster[State]

	lock  sync.Mutex
	state State

	log *log.Entry
}

func NewRover(config RoverConfig, channel hardware.Channel, relays Relays, source input.Source) (r *Rover, err error) {
	if err = config.Validate(); err != nil {
		return
	}

	controller, err := motion.New(config.Motion, config.Presets, channel)
	if err != nil {
		return
	}

	r = &Rover{
		config:     config,
		motion:     controller,
		channel:    channel,
		relays:     relays,
		source:     source,
		classifier: config.Stick,
		snapshot:   input.NewSnapshot(),
		loop:       NewLoopState(relays.Len()),
		commands:   make(chan Command, COMMAND_QUEUE),
		states:     broadcast.New[State](),
		log:        log.WithField("component", "rover"),
	}
	r.classifier.Step = config.Motion.Step
	r.state = r.collect()
	r.states.Publish(r.state)
	return r, nil
}

// Submit queues a command for the next cycles. It never blocks.
func (r *Rover) Submit(cmd Command) error {
	select {
	case r.commands <- cmd:
		return nil
	default:
		return ErrBusy
	}
}

// State returns the state published at the end of the last cycle.
func (r *Rover) State() State {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.state
	s.Relays = append([]bool(nil), s.Relays...)
	return s
}

// Subscribe streams every published state, starting with the current one.
func (r *Rover) Subscribe(buffer int) (<-chan State, func()) {
	return r.states.Subscribe(buffer)
}

func (r *Rover) collect() State {
	m := r.motion.State()
	return State{
		State:    m,
		Relays:   r.relays.States(),
		Twist:    EstimateTwist(m.Left, m.Right, m.MaxPWM),
		Stopping: r.loop.stopping,
	}
}

func (r *Rover) publish() {
	s := r.collect()

	r.lock.Lock()
	changed := !s.equal(r.state)
	if changed {
		r.state = s
	}
	r.lock.Unlock()

	if changed {
		r.states.Publish(s)
	}
}

// Shutdown releases the wheels to a standstill and closes the hardware. It
// must be called from the goroutine that runs the loop, or after it stopped.
func (r *Rover) Shutdown() (err error) {
	r.log.Info("shutting down")
	if err = r.motion.Halt(); err != nil {
		r.log.WithError(err).Warn("unable to halt wheels")
	}
	r.loop.stopping, r.loop.danger = false, false
	r.publish()

	if closer, ok := r.channel.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			err = cerr
		}
	}
	if cerr := r.relays.Close(); cerr != nil {
		err = cerr
	}
	return
}

func (r *Rover) perform(in input.Intent) (err error) {
	switch in.Kind {
	case input.MoveForward:
		err = r.motion.MoveForward(in.Magnitude)
	case input.MoveBackward:
		err = r.motion.MoveBackward(in.Magnitude)
	case input.TurnLeft:
		err = r.motion.TurnLeft(in.Forward, in.Magnitude)
	case input.TurnRight:
		err = r.motion.TurnRight(in.Forward, in.Magnitude)
	default:
		return fmt.Errorf("nothing to do for %v", in)
	}

	if err != nil {
		r.log.WithField("intent", in).WithError(err).Warn("motion failed")
	}
	return
}

// execute carries out a queued command and reports whether it used up the
// motion operation for this cycle.
func (r *Rover) execute(cmd Command, now time.Time) (moved bool) {
	var err error
	switch cmd.Kind {
	case CmdMove:
		in := cmd.Intent
		if in.Magnitude == 0 {
			in.Magnitude = r.config.Motion.Step
		}
		r.loop.moved(now)
		// perform logs its own failures
		r.perform(in)
		return true
	case CmdStop:
		r.loop.stopping = true
	case CmdPreset:
		err = r.motion.SetPreset(cmd.Preset)
	case CmdTogglePreset:
		err = r.motion.TogglePreset()
	case CmdLight:
		_, err = r.relays.Toggle(cmd.Relay)
	case CmdLightsOff:
		r.relays.AllOff()
	default:
		err = fmt.Errorf("unknown command %v", cmd.Kind)
	}

	if err != nil {
		r.log.WithField("command", cmd.Kind).WithError(err).Warn("command failed")
	}
	return false
}
