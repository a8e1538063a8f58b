package onboard

import (
	"sync"
	"time"

	"github.com/CodedInternet/gorover/onboard/hardware"
	"github.com/stianeikeland/go-rpio/v4"
	log "github.com/sirupsen/logrus"
)

const (
	SIM_SPEED = 0.6 // m/s with both wheels at the cap
	SIM_TRACK = 0.25
)

// SimulatedBoard stands in for the serial port of a pair of MSD_EM drivers.
// It decodes the frames written to it and keeps the power each wheel would
// be running at, along with a dead reckoning pose.
type SimulatedBoard struct {
	lock   sync.Mutex
	nodes  hardware.NodeMap
	max    int
	buf    string
	frames []string
	mode   int
	left   int
	right  int
	closed bool

	pose    Pose
	updated time.Time
	now     func() time.Time
}

// NewSimulatedBoard expects the nodes the driver addresses and the power that
// counts as full speed for the pose estimate.
func NewSimulatedBoard(nodes hardware.NodeMap, max int) *SimulatedBoard {
	return &SimulatedBoard{
		nodes: nodes,
		max:   max,
		mode:  -1,
		now:   time.Now,
	}
}

func (b *SimulatedBoard) Write(p []byte) (n int, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return 0, hardware.ErrClosed
	}

	var frames []string
	frames, b.buf = hardware.SplitFrames(b.buf + string(p))
	for _, frame := range frames {
		b.frames = append(b.frames, frame)
		cmd, err := hardware.ParseCmd(frame)
		if err != nil {
			log.WithField("frame", frame).WithError(err).Warn("simulated board ignored frame")
			continue
		}
		b.apply(cmd)
	}

	return len(p), nil
}

func (b *SimulatedBoard) apply(cmd hardware.Command) {
	sel, ok := b.nodes.Selector(cmd.Node)
	if !ok {
		log.WithField("node", cmd.Node).Warn("simulated board has no such node")
		return
	}

	if cmd.Mode != nil {
		b.mode = *cmd.Mode
	}
	if cmd.Power == nil {
		return
	}
	if b.mode != hardware.MODE_PWM {
		log.WithField("mode", b.mode).Warn("power ignored outside PWM mode")
		return
	}

	b.advance()
	power := *cmd.Power
	switch sel {
	case hardware.Both:
		b.left, b.right = power, power
	case hardware.Left:
		b.left = power
	case hardware.Right:
		b.right = power
	}
}

// advance integrates the pose up to now at the current powers.
func (b *SimulatedBoard) advance() {
	now := b.now()
	if !b.updated.IsZero() {
		b.pose = b.pose.Advance(EstimateTwist(b.left, b.right, b.max), SIM_SPEED, SIM_TRACK, now.Sub(b.updated))
	}
	b.updated = now
}

func (b *SimulatedBoard) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.closed = true
	return nil
}

func (b *SimulatedBoard) Powers() (left, right int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.left, b.right
}

func (b *SimulatedBoard) Mode() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.mode
}

// Frames returns every complete frame received so far.
func (b *SimulatedBoard) Frames() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.frames...)
}

func (b *SimulatedBoard) Pose() Pose {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.advance()
	return b.pose
}

// SimulatedPin is a gpio line that remembers its level.
type SimulatedPin struct {
	lock   sync.Mutex
	output bool
	state  rpio.State
}

func NewSimulatedPins(count int) []hardware.Pin {
	pins := make([]hardware.Pin, count)
	for i := range pins {
		pins[i] = new(SimulatedPin)
	}
	return pins
}

func (p *SimulatedPin) Output() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.output = true
}

func (p *SimulatedPin) High() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.state = rpio.High
}

func (p *SimulatedPin) Low() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.state = rpio.Low
}

func (p *SimulatedPin) Read() rpio.State {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}
