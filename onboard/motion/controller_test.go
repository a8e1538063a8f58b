package motion

import (
	"errors"
	"math/rand"
	"testing"

	rerrors "github.com/CodedInternet/gorover/onboard/errors"
	"github.com/CodedInternet/gorover/onboard/hardware"
	. "github.com/smartystreets/goconvey/convey"
)

type sent struct {
	sel   hardware.Selector
	power int
}

type testChannel struct {
	txerr   bool
	sent    []sent
	settles int
}

func (t *testChannel) Send(sel hardware.Selector, power int) error {
	t.sent = append(t.sent, sent{sel, power})
	if t.txerr {
		return errors.New("this is a simulated tx error")
	}
	return nil
}

func (t *testChannel) Settle() {
	t.settles++
}

func (t *testChannel) reset() {
	t.sent = nil
	t.settles = 0
}

const step = 10

func newTestController() (*Controller, *testChannel) {
	ch := new(testChannel)
	c, err := New(DefaultConfig(), DefaultPresets(), ch)
	if err != nil {
		panic(err)
	}
	return c, ch
}

func TestNewController(t *testing.T) {
	Convey("a new controller is at standstill heading forward", t, func() {
		c, ch := newTestController()
		So(c.Left(), ShouldEqual, 0)
		So(c.Right(), ShouldEqual, 0)
		So(c.MovingForward(), ShouldBeTrue)
		So(c.MaxPWM(), ShouldEqual, 400)
		So(c.Preset(), ShouldEqual, High)
		So(ch.sent, ShouldBeEmpty)
	})

	Convey("invalid constants are refused", t, func() {
		cases := []struct {
			name   string
			mutate func(c *Config, p *Presets)
		}{
			{"zero step", func(c *Config, p *Presets) { c.Step = 0 }},
			{"negative min delta", func(c *Config, p *Presets) { c.MinDelta = -1 }},
			{"stop above depart", func(c *Config, p *Presets) { c.Stop = 130 }},
			{"stop equal to depart", func(c *Config, p *Presets) { c.Stop = c.Depart }},
			{"depart above high", func(c *Config, p *Presets) { p.High = 100 }},
			{"depart equal to low", func(c *Config, p *Presets) { p.Low = c.Depart }},
			{"unknown starting speed", func(c *Config, p *Presets) { p.Start = "ludicrous" }},
		}

		for _, tc := range cases {
			conf, presets := DefaultConfig(), DefaultPresets()
			tc.mutate(&conf, &presets)
			Convey(tc.name, func() {
				_, err := New(conf, presets, new(testChannel))
				So(err, ShouldHaveSameTypeAs, rerrors.ConfigurationError{})
			})
		}
	})

	Convey("the low preset can be the starting one", t, func() {
		presets := DefaultPresets()
		presets.Start = Low
		c, err := New(DefaultConfig(), presets, new(testChannel))
		So(err, ShouldBeNil)
		So(c.MaxPWM(), ShouldEqual, 200)
	})
}

func TestAccelPrecondition(t *testing.T) {
	Convey("accel must be a positive multiple of step", t, func() {
		c, ch := newTestController()
		c.Restore(200, 150, true)

		for _, accel := range []int{0, -step, step + 5} {
			So(c.MoveForward(accel), ShouldHaveSameTypeAs, rerrors.InvalidArgumentError{})
			So(c.MoveBackward(accel), ShouldHaveSameTypeAs, rerrors.InvalidArgumentError{})
			So(c.TurnLeft(true, accel), ShouldHaveSameTypeAs, rerrors.InvalidArgumentError{})
			So(c.TurnRight(false, accel), ShouldHaveSameTypeAs, rerrors.InvalidArgumentError{})
		}

		So(c.Left(), ShouldEqual, 200)
		So(c.Right(), ShouldEqual, 150)
		So(ch.sent, ShouldBeEmpty)
	})
}

func TestMoveForward(t *testing.T) {
	Convey("from standstill", t, func() {
		c, ch := newTestController()

		Convey("one step departs both wheels together", func() {
			So(c.MoveForward(step), ShouldBeNil)
			So(c.Left(), ShouldEqual, 120)
			So(c.Right(), ShouldEqual, 120)
			So(ch.sent, ShouldResemble, []sent{{hardware.Both, 120}})
		})

		Convey("repeated steps ramp up to the cap and stay there", func() {
			calls := 0
			for c.Left() < c.MaxPWM() {
				So(c.MoveForward(step), ShouldBeNil)
				So(c.Left(), ShouldEqual, c.Right())
				So(c.Left(), ShouldBeLessThanOrEqualTo, 400)
				calls++
			}
			So(calls, ShouldEqual, 1+(400-120)/step)

			Convey("larger accelerations are clamped", func() {
				c.Restore(390, 390, true)
				So(c.MoveForward(3*step), ShouldBeNil)
				So(c.Left(), ShouldEqual, 400)
			})
		})

		Convey("the backward mirror departs negative", func() {
			So(c.MoveBackward(step), ShouldBeNil)
			So(c.Left(), ShouldEqual, -120)
			So(c.Right(), ShouldEqual, -120)
			So(c.MovingForward(), ShouldBeFalse)
		})
	})

	Convey("at saturation repeated calls change nothing", t, func() {
		c, ch := newTestController()
		c.Restore(400, 400, true)
		for i := 0; i < 5; i++ {
			So(c.MoveForward(step), ShouldBeNil)
		}
		So(c.Left(), ShouldEqual, 400)
		So(c.Right(), ShouldEqual, 400)
		So(ch.sent, ShouldBeEmpty)
	})

	Convey("turning then straightening brings the slow wheel up first", t, func() {
		c, ch := newTestController()
		c.Restore(300, 120, true)

		last := 120
		calls := 0
		for c.Left() != c.Right() {
			So(c.MoveForward(step), ShouldBeNil)
			So(c.Left(), ShouldEqual, 300)
			So(c.Right(), ShouldBeGreaterThan, last)
			last = c.Right()
			calls++
			So(calls, ShouldBeLessThan, 30)
		}
		for _, s := range ch.sent {
			So(s.sel, ShouldEqual, hardware.Right)
		}

		So(c.MoveForward(step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 310)
		So(c.Right(), ShouldEqual, 310)
	})

	Convey("a trailing wheel at zero departs", t, func() {
		c, _ := newTestController()
		c.Restore(0, 250, true)
		So(c.MoveForward(step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 120)
		So(c.Right(), ShouldEqual, 250)
	})

	Convey("a trailing wheel never overtakes the leading one", t, func() {
		c, _ := newTestController()
		c.Restore(110, 0, true)
		So(c.MoveForward(step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 110)
		So(c.Right(), ShouldEqual, 110)
	})

	Convey("a wheel running backward is released instead", t, func() {
		c, _ := newTestController()
		c.Restore(300, -150, true)
		So(c.MoveForward(step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 290)
		So(c.Right(), ShouldEqual, -140)
	})
}

func TestReversal(t *testing.T) {
	Convey("reversing decelerates through standstill", t, func() {
		c, _ := newTestController()
		c.Restore(200, 200, true)

		reachedZero := false
		for i := 0; i < 40 && !(c.Left() < 0); i++ {
			So(c.MoveBackward(step), ShouldBeNil)
			if c.Left() == 0 && c.Right() == 0 {
				reachedZero = true
			}
			if c.Left() < 0 || c.Right() < 0 {
				So(reachedZero, ShouldBeTrue)
			}
		}

		So(reachedZero, ShouldBeTrue)
		So(c.Left(), ShouldEqual, -120)
		So(c.Right(), ShouldEqual, -120)
		So(c.MovingForward(), ShouldBeFalse)
	})

	Convey("reversing out of a backward turn also passes standstill", t, func() {
		c, _ := newTestController()
		c.Restore(-300, -130, false)

		reachedZero := false
		for i := 0; i < 80 && !(c.Left() > 0 || c.Right() > 0); i++ {
			So(c.MoveForward(step), ShouldBeNil)
			if c.Stopped() {
				reachedZero = true
			}
		}
		So(reachedZero, ShouldBeTrue)
		So(c.MovingForward(), ShouldBeTrue)
	})
}

func TestTurnRight(t *testing.T) {
	Convey("at full speed the inner wheel is trimmed before the outer one changes", t, func() {
		c, ch := newTestController()
		c.Restore(400, 400, true)

		for c.Left() > 120 {
			prev := c.Left()
			So(c.TurnRight(true, step), ShouldBeNil)
			So(c.Right(), ShouldEqual, 400)
			So(c.Left(), ShouldEqual, prev-step)
		}
		for _, s := range ch.sent {
			So(s.sel, ShouldEqual, hardware.Left)
		}

		Convey("and stops at the departure level", func() {
			ch.reset()
			So(c.TurnRight(true, step), ShouldBeNil)
			So(c.Left(), ShouldEqual, 120)
			So(c.Right(), ShouldEqual, 400)
			So(ch.sent, ShouldBeEmpty)
		})
	})

	Convey("from standstill only the outer wheel departs", t, func() {
		c, ch := newTestController()

		Convey("forward", func() {
			So(c.TurnRight(true, step), ShouldBeNil)
			So(c.Right(), ShouldEqual, 120)
			So(c.Left(), ShouldEqual, 0)
			So(ch.sent, ShouldResemble, []sent{{hardware.Right, 120}})
		})

		Convey("backward", func() {
			So(c.TurnRight(false, step), ShouldBeNil)
			So(c.Right(), ShouldEqual, -120)
			So(c.Left(), ShouldEqual, 0)
			So(c.MovingForward(), ShouldBeFalse)
		})
	})

	Convey("moving straight the outer wheel speeds up", t, func() {
		c, _ := newTestController()
		c.Restore(200, 200, true)
		So(c.TurnRight(true, 2*step), ShouldBeNil)
		So(c.Right(), ShouldEqual, 220)
		So(c.Left(), ShouldEqual, 200)

		Convey("and keeps going while already turning right", func() {
			So(c.TurnRight(true, 2*step), ShouldBeNil)
			So(c.Right(), ShouldEqual, 240)
			So(c.Left(), ShouldEqual, 200)
		})
	})

	Convey("while turning left the left wheel comes back to the right one", t, func() {
		c, ch := newTestController()
		c.Restore(300, 120, true)
		So(c.TurnRight(true, step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 290)
		So(c.Right(), ShouldEqual, 120)
		So(ch.sent, ShouldResemble, []sent{{hardware.Left, 290}})

		Convey("snapping onto it inside the minimum differential", func() {
			c.Restore(165, 120, true)
			So(c.TurnRight(true, step), ShouldBeNil)
			So(c.Left(), ShouldEqual, 120)
		})
	})

	Convey("turning against the direction of travel releases", t, func() {
		c, _ := newTestController()
		c.Restore(-200, -200, false)
		So(c.TurnRight(true, step), ShouldBeNil)
		So(c.Left(), ShouldEqual, -190)
		So(c.Right(), ShouldEqual, -190)
	})

	Convey("an inner wheel below departure is raised to it at full speed", t, func() {
		c, _ := newTestController()
		c.Restore(110, 400, true)
		So(c.TurnRight(true, step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 120)
		So(c.Right(), ShouldEqual, 400)
	})
}

func TestTurnLeft(t *testing.T) {
	Convey("turn left mirrors turn right", t, func() {
		c, _ := newTestController()
		c.Restore(400, 400, true)
		So(c.TurnLeft(true, step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 400)
		So(c.Right(), ShouldEqual, 390)

		Convey("from standstill the left wheel departs", func() {
			c.Restore(0, 0, true)
			So(c.TurnLeft(true, step), ShouldBeNil)
			So(c.Left(), ShouldEqual, 120)
			So(c.Right(), ShouldEqual, 0)
		})

		Convey("backward at full speed trims the right wheel toward zero", func() {
			c.Restore(-400, -400, false)
			So(c.TurnLeft(false, 2*step), ShouldBeNil)
			So(c.Left(), ShouldEqual, -400)
			So(c.Right(), ShouldEqual, -380)
		})
	})
}

func TestRelease(t *testing.T) {
	Convey("straight release decelerates in lockstep", t, func() {
		c, ch := newTestController()
		c.Restore(200, 200, true)

		prev := 200
		calls := 0
		for {
			moving, err := c.Release()
			So(err, ShouldBeNil)
			calls++
			So(c.Left(), ShouldEqual, c.Right())
			So(c.Left(), ShouldBeLessThan, prev)
			prev = c.Left()
			if !moving {
				break
			}
		}
		So(c.Left(), ShouldEqual, 0)
		So(calls, ShouldBeLessThanOrEqualTo, 200/step)
		for _, s := range ch.sent {
			So(s.sel, ShouldEqual, hardware.Both)
		}

		Convey("further calls are no-ops", func() {
			ch.reset()
			moving, err := c.Release()
			So(err, ShouldBeNil)
			So(moving, ShouldBeFalse)
			So(ch.sent, ShouldBeEmpty)
		})
	})

	Convey("asymmetric release writes the outer wheel first", t, func() {
		c, ch := newTestController()
		c.Restore(150, 300, true)
		moving, _ := c.Release()
		So(moving, ShouldBeTrue)
		So(c.Left(), ShouldEqual, 140)
		So(c.Right(), ShouldEqual, 290)
		So(ch.sent, ShouldResemble, []sent{{hardware.Right, 290}, {hardware.Left, 140}})
		So(ch.settles, ShouldEqual, 1)

		Convey("once the inner wheel stops only the outer one is released", func() {
			c.Restore(0, 250, true)
			ch.reset()
			c.Release()
			So(c.Left(), ShouldEqual, 0)
			So(c.Right(), ShouldEqual, 240)
			So(ch.sent, ShouldResemble, []sent{{hardware.Right, 240}})
		})
	})

	Convey("wheels spinning in opposite directions both decelerate", t, func() {
		c, _ := newTestController()
		c.Restore(-130, 130, true)
		c.Release()
		So(c.Left(), ShouldEqual, -120)
		So(c.Right(), ShouldEqual, 120)
	})

	Convey("values never stop inside the stop band", t, func() {
		c, _ := newTestController()
		c.Restore(100, 100, true)
		moving, _ := c.Release()
		So(moving, ShouldBeFalse)
		So(c.Left(), ShouldEqual, 0)
	})

	Convey("halt brings any state to zero", t, func() {
		c, _ := newTestController()
		c.Restore(400, -260, true)
		So(c.Halt(), ShouldBeNil)
		So(c.Stopped(), ShouldBeTrue)
	})
}

func TestPresets(t *testing.T) {
	Convey("dropping to the low preset clamps a fast rover", t, func() {
		c, ch := newTestController()
		c.Restore(400, 300, true)
		So(c.SetPreset(Low), ShouldBeNil)
		So(c.MaxPWM(), ShouldEqual, 200)
		So(c.Left(), ShouldEqual, 200)
		So(c.Right(), ShouldEqual, 200)
		So(ch.sent, ShouldResemble, []sent{{hardware.Both, 200}})

		Convey("toggling returns to high without changing the wheels", func() {
			ch.reset()
			So(c.TogglePreset(), ShouldBeNil)
			So(c.Preset(), ShouldEqual, High)
			So(c.MaxPWM(), ShouldEqual, 400)
			So(ch.sent, ShouldBeEmpty)
		})
	})

	Convey("unknown presets are refused", t, func() {
		c, _ := newTestController()
		So(c.SetPreset("warp"), ShouldHaveSameTypeAs, rerrors.PresetNameError{})
		_, err := ParsePreset("warp")
		So(err, ShouldNotBeNil)
	})

	Convey("a cap at or below departure is refused", t, func() {
		c, _ := newTestController()
		So(c.SetMaxPWM(120), ShouldHaveSameTypeAs, rerrors.ConfigurationError{})
		So(c.SetMaxPWM(300), ShouldBeNil)
		So(c.MaxPWM(), ShouldEqual, 300)
	})
}

func TestStateCorrection(t *testing.T) {
	Convey("a wheel above the cap is clamped and the call carries on", t, func() {
		c, ch := newTestController()
		c.Restore(500, 500, true)
		So(c.MoveForward(step), ShouldBeNil)
		So(c.Left(), ShouldEqual, 400)
		So(c.Right(), ShouldEqual, 400)
		So(ch.sent, ShouldResemble, []sent{{hardware.Both, 400}})
	})
}

func TestTransportErrors(t *testing.T) {
	Convey("a failed write is reported but the state is kept", t, func() {
		c, ch := newTestController()
		ch.txerr = true
		err := c.MoveForward(step)
		So(err, ShouldHaveSameTypeAs, rerrors.TransportError{})
		So(c.Left(), ShouldEqual, 120)
		So(c.Right(), ShouldEqual, 120)

		Convey("both writes of a pair are attempted", func() {
			c.Restore(300, 150, true)
			ch.reset()
			_, err := c.Release()
			So(err, ShouldNotBeNil)
			So(len(ch.sent), ShouldEqual, 2)
		})
	})
}

func TestInvariantsUnderRandomDriving(t *testing.T) {
	Convey("random command sequences keep every invariant", t, func() {
		c, ch := newTestController()
		conf := c.Config()
		rng := rand.New(rand.NewSource(42))

		for i := 0; i < 5000; i++ {
			prevLeft, prevRight := c.Left(), c.Right()
			accel := step * (1 + rng.Intn(3))
			ch.reset()

			released := false
			switch rng.Intn(8) {
			case 0:
				c.MoveForward(accel)
			case 1:
				c.MoveBackward(accel)
			case 2:
				c.TurnLeft(rng.Intn(2) == 0, accel)
			case 3:
				c.TurnRight(rng.Intn(2) == 0, accel)
			case 4:
				c.TogglePreset()
			default:
				moving, _ := c.Release()
				released = true
				if !moving {
					So(c.Stopped(), ShouldBeTrue)
				}
			}

			for _, p := range []int{c.Left(), c.Right()} {
				So(abs(p), ShouldBeLessThanOrEqualTo, c.MaxPWM())
				So(p == 0 || abs(p) >= conf.Stop, ShouldBeTrue)
			}

			// a wheel never flips sign without passing zero
			So(prevLeft*c.Left() >= 0, ShouldBeTrue)
			So(prevRight*c.Right() >= 0, ShouldBeTrue)

			if released {
				So(abs(c.Left()), ShouldBeLessThanOrEqualTo, abs(prevLeft))
				So(abs(c.Right()), ShouldBeLessThanOrEqualTo, abs(prevRight))
			}
		}
	})
}
