package onboard

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "math"
)

// Twist is the body motion implied by the wheel powers, normalised so that
// both wheels at the cap gives a Linear of 1. Angular is positive when
// turning clockwise.
type Twist struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// EstimateTwist treats power as proportional to wheel speed, which is
// close enough for a PWM driven hobby motor to show on a dashboard.
func EstimateTwist(left, right, max int) Twist {
	if max <= 0 {
		return Twist{}
	}

	wheels := mgl64.Vec2{float64(left), float64(right)}.Mul(1 / float64(max))
	return Twist{
		Linear:  (wheels.X() + wheels.Y()) / 2,
		Angular: (wheels.X() - wheels.Y()) / 2,
	}
}

// Pose is a dead reckoning position in metres with the heading in radians,
// zero along +Y and increasing clockwise, kept in [0, 2π).
type Pose struct {
	Position mgl64.Vec2 `json:"position"`
	Heading  float64    `json:"heading"`
}

// Advance moves the pose along a twist for dt. speed is the linear speed at
// Linear == 1 in m/s and track the distance between the wheels in metres.
func (p Pose) Advance(t Twist, speed, track float64, dt time.Duration) Pose {
	secs := dt.Seconds()
	if secs <= 0 {
		return p
	}

	// wheel speed difference over the track width
	omega := 2 * t.Angular * speed / track
	heading := p.Heading + omega*secs/2

	// rotate the forward vector into the world frame at the mid-point heading
	forward := mgl64.Rotate2D(-heading).Mul2x1(mgl64.Vec2{0, t.Linear * speed * secs})

	return Pose{
		Position: p.Position.Add(forward),
		Heading:  normaliseHeading(p.Heading + omega*secs),
	}
}

// normaliseHeading wraps a heading into [0, 2π).
func normaliseHeading(h float64) float64 {
	h = Mod(h, 2*Pi)
	if h < 0 {
		h += 2 * Pi
	}
	return h
}
