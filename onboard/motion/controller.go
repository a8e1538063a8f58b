// Package motion turns directional commands into the power levels of the two
// drive wheels.
//
// Both wheels carry a signed PWM level, positive for forward rotation. Every
// change is ramped: a wheel leaves standstill at the departure level, speeds up
// in steps up to the current cap and is brought back down one step at a time
// by Release. A level inside the stop band is never left on a wheel, it is
// snapped to zero instead.
//
// A Controller has a single owner. It does no locking of its own.
package motion

import (
	"fmt"

	rerrors "github.com/CodedInternet/gorover/onboard/errors"
	"github.com/CodedInternet/gorover/onboard/hardware"
	log "github.com/sirupsen/logrus"
)

// State is a copy of the wheel powers and speed cap at one moment.
type State struct {
	Left          int    `json:"left"`
	Right         int    `json:"right"`
	MovingForward bool   `json:"moving_forward"`
	MaxPWM        int    `json:"max_pwm"`
	Preset        Preset `json:"preset"`
}

// Controller drives the left and right wheels over a Channel. It is not safe
// for concurrent use.
type Controller struct {
	conf    Config
	presets Presets
	ch      hardware.Channel

	left, right   int
	movingForward bool
	max           int
	preset        Preset

	log *log.Entry
}

// New builds a controller at standstill, heading forward, capped by the
// starting preset. Nothing is written to the channel.
func New(conf Config, presets Presets, ch hardware.Channel) (*Controller, error) {
	if err := Validate(conf, presets); err != nil {
		return nil, err
	}

	max, _ := presets.Max(presets.Start)
	return &Controller{
		conf:          conf,
		presets:       presets,
		ch:            ch,
		movingForward: true,
		max:           max,
		preset:        presets.Start,
		log:           log.WithField("component", "motion"),
	}, nil
}

func (c *Controller) Left() int           { return c.left }
func (c *Controller) Right() int          { return c.right }
func (c *Controller) MovingForward() bool { return c.movingForward }
func (c *Controller) MaxPWM() int         { return c.max }
func (c *Controller) Preset() Preset      { return c.preset }
func (c *Controller) Config() Config      { return c.conf }

func (c *Controller) State() State {
	return State{
		Left:          c.left,
		Right:         c.right,
		MovingForward: c.movingForward,
		MaxPWM:        c.max,
		Preset:        c.preset,
	}
}

// Stopped reports whether both wheels are at zero.
func (c *Controller) Stopped() bool {
	return c.left == 0 && c.right == 0
}

// Restore loads a known wheel state without writing it, for example after the
// driver has been reset externally. Out of range values are corrected on the
// next operation.
func (c *Controller) Restore(left, right int, movingForward bool) {
	c.left, c.right = left, right
	c.movingForward = movingForward
}

// SetPreset switches the speed cap to a named preset.
func (c *Controller) SetPreset(preset Preset) error {
	max, err := c.presets.Max(preset)
	if err != nil {
		return err
	}

	c.preset = preset
	c.log.WithFields(log.Fields{"preset": preset, "max": max}).Info("speed preset selected")
	return c.setMax(max)
}

func (c *Controller) TogglePreset() error {
	if c.preset == High {
		return c.SetPreset(Low)
	}
	return c.SetPreset(High)
}

// SetMaxPWM applies an arbitrary cap. Wheels above the new cap are pulled down
// to it straight away.
func (c *Controller) SetMaxPWM(max int) error {
	if max <= c.conf.Depart {
		return rerrors.ConfigurationError{
			Field:  "max_pwm",
			Reason: fmt.Sprintf("%d must be above depart %d", max, c.conf.Depart),
		}
	}
	return c.setMax(max)
}

func (c *Controller) setMax(max int) error {
	c.max = max
	return c.apply(c.clamp(c.left), c.clamp(c.right))
}

// MoveForward drives both wheels forward, ramping by accel. Wheels that are
// still turning backward are released first.
func (c *Controller) MoveForward(accel int) error {
	return c.move("MoveForward", true, accel)
}

// MoveBackward mirrors MoveForward.
func (c *Controller) MoveBackward(accel int) error {
	return c.move("MoveBackward", false, accel)
}

// TurnRight turns clockwise on top of travel in the given direction. The right
// wheel is the outer wheel and is sped up first, the left one is trimmed once
// the right wheel reaches the cap.
func (c *Controller) TurnRight(forward bool, accel int) error {
	return c.turn("TurnRight", hardware.Right, forward, accel)
}

// TurnLeft mirrors TurnRight with the left wheel on the outside.
func (c *Controller) TurnLeft(forward bool, accel int) error {
	return c.turn("TurnLeft", hardware.Left, forward, accel)
}

// Release brings the wheels one step closer to standstill. It returns true
// while either wheel is still powered after the call, and false without
// writing anything once both are at zero.
func (c *Controller) Release() (bool, error) {
	if err := c.correct(); err != nil {
		return !c.Stopped(), err
	}
	err := c.release()
	return !c.Stopped(), err
}

// Halt releases until both wheels are at zero.
func (c *Controller) Halt() error {
	var last error
	// enough steps to bring any corrected level down to zero
	for i := 0; i <= c.max/c.conf.Step+1; i++ {
		moving, err := c.Release()
		if err != nil {
			last = err
		}
		if !moving {
			return last
		}
	}
	if last == nil {
		last = fmt.Errorf("wheels still powered after halt: %d/%d", c.left, c.right)
	}
	return last
}

func (c *Controller) release() error {
	l, r := c.left, c.right
	switch {
	case l == 0 && r == 0:
		return nil

	case l == r:
		n := c.decelerate(l)
		return c.apply(n, n)

	case abs(l) >= abs(r):
		if r == 0 {
			return c.apply(c.decelerate(l), r)
		}
		return c.apply(c.decelerate(l), c.decelerate(r))

	default:
		if l == 0 {
			return c.apply(l, c.decelerate(r))
		}
		return c.apply(c.decelerate(l), c.decelerate(r))
	}
}

func (c *Controller) move(op string, forward bool, accel int) error {
	if err := c.checkAccel(op, accel); err != nil {
		return err
	}
	if err := c.correct(); err != nil {
		return err
	}

	sgn := direction(forward)
	l, r := c.left, c.right

	if l == r {
		switch {
		case l*sgn < 0:
			// travelling the other way, come to a stop before reversing
			return c.release()
		case abs(l) < c.conf.Depart:
			c.movingForward = forward
			return c.apply(c.departure(forward), c.departure(forward))
		case abs(l) < c.max:
			c.movingForward = forward
			n := sgn * min(abs(l)+accel, c.max)
			return c.apply(n, n)
		}
		c.movingForward = forward
		return nil
	}

	lead, trail := l, r
	if abs(r) > abs(l) {
		lead, trail = r, l
	}
	if abs(lead) == abs(trail) || lead*sgn < 0 || trail*sgn < 0 {
		return c.release()
	}

	// bring the slower wheel up to the faster one
	t, ld := abs(trail), abs(lead)
	switch {
	case t < c.conf.Depart:
		t = c.conf.Depart
	case ld-t < c.conf.MinDelta:
		t = ld
	default:
		t += c.conf.Step
	}
	if t > ld {
		t = ld
	}

	c.movingForward = forward
	if abs(l) > abs(r) {
		return c.apply(l, sgn*t)
	}
	return c.apply(sgn*t, r)
}

// turn applies the ordered turn rules. outer is the wheel on the outside of
// the curve, the other wheel is the inner one.
func (c *Controller) turn(op string, outer hardware.Selector, forward bool, accel int) error {
	if err := c.checkAccel(op, accel); err != nil {
		return err
	}
	if err := c.correct(); err != nil {
		return err
	}

	sgn := direction(forward)
	o, i := c.left, c.right
	if outer == hardware.Right {
		o, i = c.right, c.left
	}

	set := func(o, i int) error {
		if outer == hardware.Right {
			return c.apply(i, o)
		}
		return c.apply(o, i)
	}

	switch {
	// turning the other way, straighten up first
	case abs(o) < abs(i):
		return set(o, c.approach(i, o))

	// standstill
	case o == 0 && i == 0:
		c.movingForward = forward
		return set(c.departure(forward), i)

	// moving against the requested direction
	case o*sgn < 0 || i*sgn < 0:
		return c.release()

	case abs(o) < c.max:
		c.movingForward = forward
		return set(sgn*min(abs(o)+accel, c.max), i)

	// outer wheel saturated, tighten the turn by trimming the inner wheel
	case i == 0 || abs(i) == c.conf.Depart:
		return nil

	case abs(i) < c.conf.Depart:
		return set(o, sgn*c.conf.Depart)

	default:
		return set(o, sgn*max(abs(i)-accel, c.conf.Depart))
	}
}

// approach moves from one step toward to. It never crosses zero in a single
// call and snaps onto to once within MinDelta.
func (c *Controller) approach(from, to int) int {
	n := from
	if from < to {
		n = min(from+c.conf.Step, to)
	} else if from > to {
		n = max(from-c.conf.Step, to)
	}

	if from != 0 && n*from < 0 {
		n = 0
	} else if abs(to-n) < c.conf.MinDelta {
		n = to
	}
	return c.snap(n)
}

// decelerate moves power one step toward zero, landing on zero when the
// result would fall inside the stop band.
func (c *Controller) decelerate(power int) int {
	switch {
	case abs(power) < c.conf.Stop:
		return 0
	case power > 0:
		power -= c.conf.Step
		if power < 0 {
			return 0
		}
	default:
		power += c.conf.Step
		if power > 0 {
			return 0
		}
	}
	return c.snap(power)
}

func (c *Controller) departure(forward bool) int {
	return direction(forward) * c.conf.Depart
}

func (c *Controller) snap(power int) int {
	if abs(power) < c.conf.Stop {
		return 0
	}
	return power
}

func (c *Controller) clamp(power int) int {
	if power > c.max {
		return c.max
	}
	if power < -c.max {
		return -c.max
	}
	return power
}

func (c *Controller) checkAccel(op string, accel int) error {
	if accel <= 0 || accel%c.conf.Step != 0 {
		return rerrors.InvalidArgumentError{
			Op:     op,
			Name:   "accel",
			Value:  accel,
			Reason: fmt.Sprintf("must be a positive multiple of %d", c.conf.Step),
		}
	}
	return nil
}

// correct clamps any wheel found above the cap. This should be unreachable.
func (c *Controller) correct() error {
	l, r := c.clamp(c.left), c.clamp(c.right)
	if l == c.left && r == c.right {
		return nil
	}

	if l != c.left {
		c.log.Warn(rerrors.StateCorrectionWarning{Wheel: hardware.Left.String(), Observed: c.left, Corrected: l})
	}
	if r != c.right {
		c.log.Warn(rerrors.StateCorrectionWarning{Wheel: hardware.Right.String(), Observed: c.right, Corrected: r})
	}
	return c.apply(l, r)
}

// apply stores the new levels and writes whatever changed. State is updated
// before the writes and is not rolled back when one fails.
func (c *Controller) apply(left, right int) error {
	dl, dr := left != c.left, right != c.right
	leftOuter := abs(c.left) >= abs(c.right)
	c.left, c.right = left, right

	switch {
	case dl && dr && left == right:
		return c.send(hardware.Both, left)

	case dl && dr:
		first, second := hardware.Left, hardware.Right
		if !leftOuter {
			first, second = hardware.Right, hardware.Left
		}
		err := c.send(first, c.power(first))
		c.ch.Settle()
		if err2 := c.send(second, c.power(second)); err == nil {
			err = err2
		}
		return err

	case dl:
		return c.send(hardware.Left, left)

	case dr:
		return c.send(hardware.Right, right)
	}
	return nil
}

func (c *Controller) power(sel hardware.Selector) int {
	if sel == hardware.Right {
		return c.right
	}
	return c.left
}

func (c *Controller) send(sel hardware.Selector, power int) error {
	if err := c.ch.Send(sel, power); err != nil {
		terr := rerrors.TransportError{Selector: sel.String(), Power: power, Err: err}
		c.log.WithFields(log.Fields{"wheel": sel, "power": power}).Warn(terr)
		return terr
	}
	return nil
}

func direction(forward bool) int {
	if forward {
		return 1
	}
	return -1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
