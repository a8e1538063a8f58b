// Package input reduces a gamepad, or anything pretending to be one, to a set
// of held buttons and a single analog stick.
package input

import (
	"fmt"
	"strings"
)

// Button is a bit mask. Several buttons can be combined into one value.
type Button uint16

const (
	Up Button = 1 << iota
	Down
	Left
	Right
	Triangle
	Circle
	Cross
	Square
	L1
	L2
	R1
	R2
	Start
	Select

	Arrows   = Up | Down | Left | Right
	Shoulder = L1 | L2 | R1 | R2
	Symbols  = Triangle | Circle | Cross | Square | Start | Select
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{Up, "UP"}, {Down, "DOWN"}, {Left, "LEFT"}, {Right, "RIGHT"},
	{Triangle, "TRIANGLE"}, {Circle, "CIRCLE"}, {Cross, "CROSS"}, {Square, "SQUARE"},
	{L1, "L1"}, {L2, "L2"}, {R1, "R1"}, {R2, "R2"},
	{Start, "START"}, {Select, "SELECT"},
}

func ParseButton(name string) (Button, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, bn := range buttonNames {
		if bn.name == name {
			return bn.b, nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

func (b Button) String() string {
	if b == 0 {
		return "NONE"
	}

	var names []string
	for _, bn := range buttonNames {
		if b&bn.b != 0 {
			names = append(names, bn.name)
		}
	}
	return strings.Join(names, "|")
}

// Stick is an analog stick position, 0-255 on both axes. Pushing the stick up
// lowers Y.
type Stick struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
}

// Center is the resting position reported by the PS2 receiver (0x807F).
var Center = Stick{X: 128, Y: 127}

// Deflection returns the offset from Center with forward and right positive.
func (s Stick) Deflection() (dx, dy int) {
	return int(s.X) - int(Center.X), int(Center.Y) - int(s.Y)
}

// Reading is what a Source reports on each poll.
type Reading struct {
	Buttons Button
	Stick   Stick
}

// Neutral is a reading with nothing held and the stick centered.
var Neutral = Reading{Stick: Center}

// Snapshot keeps the current and previous reading so edges can be detected.
// It is refreshed once per control cycle.
type Snapshot struct {
	last, current Button
	Stick         Stick
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Stick: Center}
}

func (s *Snapshot) Update(r Reading) {
	s.last = s.current
	s.current = r.Buttons
	s.Stick = r.Stick
}

func (s *Snapshot) Buttons() Button {
	return s.current
}

// IsPressing reports whether any of the given buttons is held.
func (s *Snapshot) IsPressing(b Button) bool {
	return s.current&b != 0
}

func (s *Snapshot) Changed(b Button) bool {
	return (s.last^s.current)&b != 0
}

// Pressed reports a button that went down on this update.
func (s *Snapshot) Pressed(b Button) bool {
	return s.Changed(b) && s.current&b != 0
}

// Released reports a button that came up on this update.
func (s *Snapshot) Released(b Button) bool {
	return s.Changed(b) && s.last&b != 0
}

func (s *Snapshot) ArrowPressing() bool {
	return s.IsPressing(Arrows)
}

func (s *Snapshot) LRPressing() bool {
	return s.IsPressing(Shoulder)
}

func (s *Snapshot) CmdPressing() bool {
	return s.IsPressing(Symbols)
}

// StickTouched reports a stick pushed beyond deadZone on either axis.
func (s *Snapshot) StickTouched(deadZone int) bool {
	dx, dy := s.Stick.Deflection()
	return abs(dx) > deadZone || abs(dy) > deadZone
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
