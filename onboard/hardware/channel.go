package hardware

import "fmt"

// Selector picks which wheel(s) a power command is addressed to.
type Selector uint8

const (
	Both Selector = iota
	Left
	Right
)

func (s Selector) String() string {
	switch s {
	case Both:
		return "both"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("selector(%d)", uint8(s))
	}
}

// Channel is the link to whatever drives the wheels. Send is fire and forget,
// nothing is read back from the driver board.
//
// Settle blocks for the delay the driver needs between two consecutive
// commands addressed to different wheels. Simulated channels return at once.
type Channel interface {
	Send(sel Selector, power int) error
	Settle()
}

// NodeMap maps selectors onto driver node numbers.
type NodeMap struct {
	Both  int `yaml:"both"`
	Left  int `yaml:"left"`
	Right int `yaml:"right"`
}

// DefaultNodes is the MSD_EM wiring used on the rover: node 0 addresses every
// driver on the bus.
var DefaultNodes = NodeMap{Both: 0, Left: 1, Right: 2}

func (n NodeMap) Node(sel Selector) (int, error) {
	switch sel {
	case Both:
		return n.Both, nil
	case Left:
		return n.Left, nil
	case Right:
		return n.Right, nil
	}

	return 0, fmt.Errorf("unknown selector %v", sel)
}

// Selector is the inverse of Node.
func (n NodeMap) Selector(node int) (Selector, bool) {
	switch node {
	case n.Both:
		return Both, true
	case n.Left:
		return Left, true
	case n.Right:
		return Right, true
	}

	return 0, false
}
