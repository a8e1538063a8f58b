package input

import "fmt"

type Kind uint8

const (
	Idle Kind = iota
	MoveForward
	MoveBackward
	TurnLeft
	TurnRight
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case MoveForward:
		return "forward"
	case MoveBackward:
		return "backward"
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Intent is one motion request derived from the gamepad. Forward is only
// meaningful for turns and gives the direction of travel the turn is laid
// over.
type Intent struct {
	Kind      Kind
	Magnitude int
	Forward   bool
}

func (i Intent) String() string {
	if i.Kind == TurnLeft || i.Kind == TurnRight {
		dir := "forward"
		if !i.Forward {
			dir = "backward"
		}
		return fmt.Sprintf("%v(%s, %d)", i.Kind, dir, i.Magnitude)
	}
	return fmt.Sprintf("%v(%d)", i.Kind, i.Magnitude)
}

const (
	DEAD_ZONE = 16
	TIER_LOW  = 48
	TIER_MID  = 96
)

// Classifier maps a snapshot onto motion intents. Digital arrows move by a
// single step. The analog stick moves by one, two or three steps depending on
// how far it is pushed.
type Classifier struct {
	Step     int `yaml:"-"`
	DeadZone int `yaml:"dead_zone"`
	TierLow  int `yaml:"tier_low"`
	TierMid  int `yaml:"tier_mid"`
}

func NewClassifier(step int) Classifier {
	return Classifier{
		Step:     step,
		DeadZone: DEAD_ZONE,
		TierLow:  TIER_LOW,
		TierMid:  TIER_MID,
	}
}

// Classify returns the candidate intents for this cycle in priority order.
// The caller runs the first one that is due. movingForward is the direction
// turns are laid over when neither UP nor DOWN says otherwise.
func (c Classifier) Classify(s *Snapshot, movingForward bool) []Intent {
	if s.ArrowPressing() {
		forward := movingForward
		if s.IsPressing(Down) {
			forward = false
		}
		if s.IsPressing(Up) {
			forward = true
		}

		var intents []Intent
		if s.IsPressing(Up) {
			intents = append(intents, Intent{Kind: MoveForward, Magnitude: c.Step, Forward: true})
		}
		if s.IsPressing(Down) {
			intents = append(intents, Intent{Kind: MoveBackward, Magnitude: c.Step})
		}
		if s.IsPressing(Left) {
			intents = append(intents, Intent{Kind: TurnLeft, Magnitude: c.Step, Forward: forward})
		}
		if s.IsPressing(Right) {
			intents = append(intents, Intent{Kind: TurnRight, Magnitude: c.Step, Forward: forward})
		}
		return intents
	}

	if !s.StickTouched(c.DeadZone) {
		return nil
	}

	dx, dy := s.Stick.Deflection()
	if abs(dy) >= abs(dx) {
		if dy > 0 {
			return []Intent{{Kind: MoveForward, Magnitude: c.tier(dy), Forward: true}}
		}
		return []Intent{{Kind: MoveBackward, Magnitude: c.tier(dy)}}
	}

	forward := movingForward
	if abs(dy) > c.DeadZone {
		forward = dy > 0
	}
	if dx < 0 {
		return []Intent{{Kind: TurnLeft, Magnitude: c.tier(dx), Forward: forward}}
	}
	return []Intent{{Kind: TurnRight, Magnitude: c.tier(dx), Forward: forward}}
}

func (c Classifier) tier(deflection int) int {
	d := abs(deflection)
	switch {
	case d < c.TierLow:
		return c.Step
	case d < c.TierMid:
		return 2 * c.Step
	default:
		return 3 * c.Step
	}
}
