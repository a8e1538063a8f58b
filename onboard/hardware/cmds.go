package hardware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MSD_EM driver modes, selected with the M field of a command.
const (
	MODE_TURNING = iota
	MODE_SF_POSITION
	MODE_PID_POSITION
	MODE_PI_VELOCITY
	MODE_SMART_POSITION
	MODE_PI_VELOCITY_BY_ADC
	MODE_PWM
)

const (
	CMD_OPEN  = '{'
	CMD_CLOSE = '}'
)

var (
	ERR_BAD_FRAME = errors.New("command is not framed by braces")
	ERR_NO_NODE   = errors.New("command does not address a node")
)

// Command is a single MSD_EM frame, for example {N1 P120} or {N0 M6}.
// Fields that are not set are not written.
type Command struct {
	Node  int
	Mode  *int
	Power *int
}

func PowerCmd(node, power int) Command {
	return Command{Node: node, Power: &power}
}

func ModeCmd(node, mode int) Command {
	return Command{Node: node, Mode: &mode}
}

func (c Command) String() string {
	var b strings.Builder
	b.WriteByte(CMD_OPEN)
	fmt.Fprintf(&b, "N%d", c.Node)
	if c.Mode != nil {
		fmt.Fprintf(&b, " M%d", *c.Mode)
	}
	if c.Power != nil {
		fmt.Fprintf(&b, " P%d", *c.Power)
	}
	b.WriteByte(CMD_CLOSE)
	return b.String()
}

func (c Command) Bytes() []byte {
	return []byte(c.String())
}

// ParseCmd reads a single frame back into a Command. Unknown fields are
// ignored so frames meant for other driver modes still parse.
func ParseCmd(frame string) (cmd Command, err error) {
	frame = strings.TrimSpace(frame)
	if len(frame) < 2 || frame[0] != CMD_OPEN || frame[len(frame)-1] != CMD_CLOSE {
		return cmd, ERR_BAD_FRAME
	}

	haveNode := false
	for _, field := range strings.Fields(frame[1 : len(frame)-1]) {
		if len(field) < 2 {
			continue
		}

		value, err := strconv.Atoi(field[1:])
		if err != nil {
			return cmd, fmt.Errorf("bad field %q: %v", field, err)
		}

		switch field[0] {
		case 'N':
			cmd.Node = value
			haveNode = true
		case 'M':
			cmd.Mode = &value
		case 'P':
			cmd.Power = &value
		}
	}

	if !haveNode {
		err = ERR_NO_NODE
	}
	return
}

// SplitFrames splits a stream of concatenated frames. Any trailing partial
// frame is returned as rest.
func SplitFrames(stream string) (frames []string, rest string) {
	for {
		start := strings.IndexByte(stream, CMD_OPEN)
		if start < 0 {
			return frames, ""
		}
		end := strings.IndexByte(stream[start:], CMD_CLOSE)
		if end < 0 {
			return frames, stream[start:]
		}
		frames = append(frames, stream[start:start+end+1])
		stream = stream[start+end+1:]
	}
}
