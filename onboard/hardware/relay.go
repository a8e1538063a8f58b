package hardware

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

// Pin is the subset of rpio.Pin used to drive a relay coil.
type Pin interface {
	Output()
	High()
	Low()
	Read() rpio.State
}

type RelayConfig struct {
	Pins      []int `yaml:"pins,flow"`
	ActiveLow bool  `yaml:"active_low"`
}

// RelayBank switches the light relays. The boards on the rover are active
// low, so a high output means the relay is off.
type RelayBank struct {
	pins      []Pin
	activeLow bool
	lock      sync.Mutex
	gpio      bool
}

// OpenRelayBank maps /dev/gpiomem and configures every pin as an output with
// the relay off.
func OpenRelayBank(config RelayConfig) (b *RelayBank, err error) {
	if err = rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "open gpio")
	}

	pins := make([]Pin, len(config.Pins))
	for i, bcm := range config.Pins {
		pins[i] = rpio.Pin(bcm)
	}

	b = NewRelayBank(pins, config.ActiveLow)
	b.gpio = true
	return b, nil
}

func NewRelayBank(pins []Pin, activeLow bool) *RelayBank {
	b := &RelayBank{
		pins:      pins,
		activeLow: activeLow,
	}

	for _, p := range pins {
		p.Output()
	}
	b.AllOff()
	return b
}

func (b *RelayBank) Len() int {
	return len(b.pins)
}

func (b *RelayBank) pin(i int) (Pin, error) {
	if i < 0 || i >= len(b.pins) {
		return nil, fmt.Errorf("no relay at index %d", i)
	}
	return b.pins[i], nil
}

func (b *RelayBank) set(p Pin, on bool) {
	if on != b.activeLow {
		p.High()
	} else {
		p.Low()
	}
}

func (b *RelayBank) isOn(p Pin) bool {
	return (p.Read() == rpio.High) != b.activeLow
}

func (b *RelayBank) Set(i int, on bool) error {
	p, err := b.pin(i)
	if err != nil {
		return err
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	b.set(p, on)
	log.WithFields(log.Fields{"relay": i, "on": on}).Info("relay switched")
	return nil
}

// Toggle flips relay i and returns the new state.
func (b *RelayBank) Toggle(i int) (on bool, err error) {
	p, err := b.pin(i)
	if err != nil {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	on = !b.isOn(p)
	b.set(p, on)
	log.WithFields(log.Fields{"relay": i, "on": on}).Info("relay toggled")
	return
}

func (b *RelayBank) AllOff() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, p := range b.pins {
		b.set(p, false)
	}
}

func (b *RelayBank) States() []bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	states := make([]bool, len(b.pins))
	for i, p := range b.pins {
		states[i] = b.isOn(p)
	}
	return states
}

// Close switches everything off and unmaps the gpio memory if it was opened
// by OpenRelayBank.
func (b *RelayBank) Close() error {
	b.AllOff()
	if b.gpio {
		b.gpio = false
		return rpio.Close()
	}
	return nil
}
