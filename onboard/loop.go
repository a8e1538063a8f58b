package onboard

import (
	"context"
	"time"

	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/CodedInternet/gorover/onboard/motion"
	log "github.com/sirupsen/logrus"
)

// light buttons in relay order
var lightButtons = []input.Button{input.L1, input.L2, input.R1, input.R2}

// LightIndex returns the relay switched by a shoulder button.
func LightIndex(b input.Button) (int, bool) {
	for i, lb := range lightButtons {
		if lb == b {
			return i, true
		}
	}
	return 0, false
}

// LoopState is everything the control loop remembers between cycles.
type LoopState struct {
	lastStep   map[input.Kind]time.Time
	lastMotion time.Time
	// danger is set while the wheels may be powered by gamepad input and
	// cleared once a stop has completed.
	danger   bool
	stopping bool

	lightDown  []time.Time
	lightArmed []bool
}

func NewLoopState(lights int) LoopState {
	return LoopState{
		lastStep:   make(map[input.Kind]time.Time),
		lightDown:  make([]time.Time, lights),
		lightArmed: make([]bool, lights),
	}
}

// moved records directional input at now, which cancels any stop in progress
// and restarts the watchdog.
func (l *LoopState) moved(now time.Time) {
	l.lastMotion = now
	l.danger = true
	l.stopping = false
}

// due reports whether an intent of kind k may run at now, and records it if so.
func (l *LoopState) due(k input.Kind, now time.Time, repeat time.Duration) bool {
	if last, ok := l.lastStep[k]; ok && now.Sub(last) < repeat {
		return false
	}
	l.lastStep[k] = now
	return true
}

// Run steps the rover every cycle until ctx is cancelled, then shuts it down.
func (r *Rover) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Loop.Cycle)
	defer ticker.Stop()

	r.log.WithField("cycle", r.config.Loop.Cycle).Info("control loop started")
	for {
		select {
		case <-ctx.Done():
			return r.Shutdown()
		case now := <-ticker.C:
			r.Step(now)
		}
	}
}

// Step runs a single control cycle. At most one motion controller operation
// is carried out per cycle.
func (r *Rover) Step(now time.Time) {
	reading, err := r.source.Poll()
	if err != nil {
		r.log.WithError(err).Debug("no input, treating as idle")
		reading = input.Neutral
	}
	r.snapshot.Update(reading)

	moved := false
	select {
	case cmd := <-r.commands:
		moved = r.execute(cmd, now)
	default:
	}

	r.buttons()
	r.lights(now)
	if !moved {
		r.drive(now)
	}
	r.publish()
}

func (r *Rover) buttons() {
	s := r.snapshot

	if s.Pressed(input.Start) {
		r.log.Info("all lights off")
		r.relays.AllOff()
	}

	var err error
	switch {
	case s.Pressed(input.Triangle):
		err = r.motion.SetPreset(motion.High)
	case s.Pressed(input.Cross):
		err = r.motion.SetPreset(motion.Low)
	case s.Pressed(input.Select):
		err = r.motion.TogglePreset()
	}
	if err != nil {
		r.log.WithError(err).Warn("unable to change speed preset")
	}

	if s.IsPressing(input.Circle) && !r.loop.stopping && !r.motion.Stopped() {
		r.log.Info("stop requested")
		r.loop.stopping = true
	}
}

// lights toggles a relay once the matching shoulder button has been held for
// twice the safety time. Each press toggles at most once.
func (r *Rover) lights(now time.Time) {
	hold := 2 * r.config.Loop.Safety
	for i, b := range lightButtons {
		if i >= len(r.loop.lightArmed) {
			return
		}

		switch {
		case r.snapshot.Pressed(b):
			r.loop.lightDown[i] = now
			r.loop.lightArmed[i] = true
		case !r.snapshot.IsPressing(b):
			r.loop.lightArmed[i] = false
		case r.loop.lightArmed[i] && now.Sub(r.loop.lightDown[i]) >= hold:
			r.loop.lightArmed[i] = false
			if _, err := r.relays.Toggle(i); err != nil {
				r.log.WithField("relay", i).WithError(err).Warn("unable to toggle light")
			}
		}
	}
}

func (r *Rover) drive(now time.Time) {
	// holding CIRCLE overrides any direction
	var intents []input.Intent
	if !r.snapshot.IsPressing(input.Circle) {
		intents = r.classifier.Classify(r.snapshot, r.motion.MovingForward())
	}

	if len(intents) > 0 {
		r.loop.moved(now)
		for _, in := range intents {
			if r.loop.due(in.Kind, now, r.config.Loop.Repeat) {
				r.perform(in)
				return
			}
		}
		return
	}

	if !r.loop.stopping && r.loop.danger && now.Sub(r.loop.lastMotion) >= r.config.Loop.Safety {
		r.log.WithField("idle", now.Sub(r.loop.lastMotion)).Info("no input, stopping")
		r.loop.stopping = true
	}

	if r.loop.stopping {
		moving, err := r.motion.Release()
		if err != nil {
			r.log.WithError(err).Warn("release failed")
		}
		if !moving {
			r.log.WithFields(log.Fields{"left": r.motion.Left(), "right": r.motion.Right()}).Debug("stopped")
			r.loop.stopping = false
			r.loop.danger = false
		}
	}
}
