package input

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/splace/joysticks"
)

const (
	JS_DEVICE_PREFIX = "/dev/input/js"
	// hats report -1..1, anything past half counts as pressed
	JS_HAT_THRESHOLD = 0.5
)

var ErrJoystickLost = errors.New("joystick disconnected")

// JoystickMapping ties joystick button and hat numbers to gamepad buttons.
// Numbers are counted the way the joysticks package does: buttons and hats
// start at 1 and each hat pairs two consecutive axes.
type JoystickMapping struct {
	Buttons map[uint8]Button `yaml:"buttons"`
	Stick   uint8            `yaml:"stick"`
	DPad    uint8            `yaml:"dpad"`
}

// DualShockMapping is the layout the hid-sony driver exposes for DualShock
// pads. The D-pad shows up both as buttons 14-17 and as the fourth hat
// depending on the model, both are mapped.
func DualShockMapping() JoystickMapping {
	return JoystickMapping{
		Buttons: map[uint8]Button{
			1: Cross, 2: Circle, 3: Triangle, 4: Square,
			5: L1, 6: R1, 7: L2, 8: R2,
			9: Select, 10: Start,
			14: Up, 15: Down, 16: Left, 17: Right,
		},
		Stick: 1,
		DPad:  4,
	}
}

// joystickEvent is what the device goroutines hand to the listener. Button
// events have hat 0.
type joystickEvent struct {
	hat     uint8
	button  uint8
	pressed bool
	x, y    float32
	lost    bool
}

// Joystick follows a joystick in the background and keeps the latest state
// for Poll.
type Joystick struct {
	mapping JoystickMapping
	events  <-chan joystickEvent

	lock    sync.Mutex
	reading Reading
	err     error

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// JoystickIndex turns /dev/input/jsN into the 1-based index joysticks.Connect
// expects.
func JoystickIndex(path string) (int, error) {
	if !strings.HasPrefix(path, JS_DEVICE_PREFIX) {
		return 0, errors.Errorf("%s is not a joystick device", path)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(path, JS_DEVICE_PREFIX))
	if err != nil || n < 0 {
		return 0, errors.Errorf("%s is not a joystick device", path)
	}
	return n + 1, nil
}

func OpenJoystick(path string, mapping JoystickMapping) (*Joystick, error) {
	index, err := JoystickIndex(path)
	if err != nil {
		return nil, err
	}
	hid := joysticks.Connect(index)
	if hid == nil {
		return nil, errors.Errorf("open joystick %s", path)
	}

	events := make(chan joystickEvent)
	stop := make(chan struct{})
	forward := func(ev joystickEvent) bool {
		select {
		case events <- ev:
			return true
		case <-stop:
			return false
		}
	}

	// every channel is registered before ParcelOutEvents starts routing
	for number := range mapping.Buttons {
		number := number
		closed, opened := hid.OnClose(number), hid.OnOpen(number)
		go func() {
			for {
				var ev joystickEvent
				select {
				case <-closed:
					ev = joystickEvent{button: number, pressed: true}
				case <-opened:
					ev = joystickEvent{button: number}
				case <-stop:
					return
				}
				if !forward(ev) {
					return
				}
			}
		}()
	}

	for _, hat := range []uint8{mapping.Stick, mapping.DPad} {
		hat := hat
		moved := hid.OnMove(hat)
		go func() {
			for {
				select {
				case e := <-moved:
					coords, ok := e.(joysticks.CoordsEvent)
					if !ok {
						continue
					}
					if !forward(joystickEvent{hat: hat, x: coords.X, y: coords.Y}) {
						return
					}
				case <-stop:
					return
				}
			}
		}()
	}

	go func() {
		// returns once the device stops producing events
		hid.ParcelOutEvents()
		forward(joystickEvent{lost: true})
	}()

	log.WithField("device", path).Info("joystick opened")
	return newJoystick(events, stop, mapping), nil
}

func newJoystick(events <-chan joystickEvent, stop chan struct{}, mapping JoystickMapping) *Joystick {
	j := &Joystick{
		mapping: mapping,
		events:  events,
		reading: Neutral,
		stop:    stop,
		done:    make(chan struct{}),
	}
	go j.listen()
	return j
}

func (j *Joystick) listen() {
	defer close(j.done)

	for {
		select {
		case ev := <-j.events:
			j.lock.Lock()
			if ev.lost {
				// the pad is gone, nothing it reported can be trusted any more
				j.reading = Neutral
				j.err = ErrJoystickLost
				j.lock.Unlock()
				log.Warn("joystick disconnected")
				return
			}
			j.apply(ev)
			j.lock.Unlock()
		case <-j.stop:
			return
		}
	}
}

func (j *Joystick) apply(ev joystickEvent) {
	switch {
	case ev.hat == 0:
		b, ok := j.mapping.Buttons[ev.button]
		if !ok {
			return
		}
		if ev.pressed {
			j.reading.Buttons |= b
		} else {
			j.reading.Buttons &^= b
		}

	case ev.hat == j.mapping.Stick:
		j.reading.Stick = Stick{X: axisToByte(ev.x), Y: axisToByte(ev.y)}

	case ev.hat == j.mapping.DPad:
		j.reading.Buttons = hat(j.reading.Buttons, ev.x, Left, Right)
		j.reading.Buttons = hat(j.reading.Buttons, ev.y, Up, Down)
	}
}

// axisToByte maps -1..1 onto 0..255 so the centre lands on 128.
func axisToByte(v float32) uint8 {
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	return uint8((v+1)*127.5 + 0.5)
}

func hat(buttons Button, v float32, neg, pos Button) Button {
	buttons &^= neg | pos
	switch {
	case v < -JS_HAT_THRESHOLD:
		buttons |= neg
	case v > JS_HAT_THRESHOLD:
		buttons |= pos
	}
	return buttons
}

func (j *Joystick) Poll() (Reading, error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.reading, j.err
}

// Close stops following the device. The joysticks package keeps the device
// file itself open for the life of the process.
func (j *Joystick) Close() error {
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
	return nil
}
