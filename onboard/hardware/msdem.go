package hardware

import (
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	BAUD_MIN     = 9600
	BAUD_MAX     = 1000000
	BAUD_DEFAULT = 115200

	SETTLE_DEFAULT  = time.Millisecond
	TIMEOUT_DEFAULT = 500 * time.Millisecond
)

var (
	ErrClosed   = errors.New("motor driver is closed")
	ErrBaudRate = errors.New("baud rate out of range")
)

// Port is the part of a serial port the driver needs. goburrow/serial ports
// satisfy it, as do the simulated boards.
type Port interface {
	io.Writer
	io.Closer
}

type MSDEMConfig struct {
	Address  string        `yaml:"device"`
	BaudRate int           `yaml:"baud"`
	Timeout  time.Duration `yaml:"timeout"`
	Settle   time.Duration `yaml:"settle"`
	Nodes    NodeMap       `yaml:"nodes"`
}

// MSDEM drives a pair of MSD_EM motor driver modules in PWM mode over a
// shared UART.
type MSDEM struct {
	port   Port
	lock   sync.Mutex
	nodes  NodeMap
	settle time.Duration
	closed bool
	log    *log.Entry
}

// OpenMSDEM opens the serial device and switches every node to PWM mode.
func OpenMSDEM(config MSDEMConfig) (m *MSDEM, err error) {
	if config.BaudRate == 0 {
		config.BaudRate = BAUD_DEFAULT
	}
	if config.BaudRate < BAUD_MIN || config.BaudRate > BAUD_MAX {
		return nil, errors.Wrapf(ErrBaudRate, "baud %d", config.BaudRate)
	}
	if config.Timeout == 0 {
		config.Timeout = TIMEOUT_DEFAULT
	}

	port, err := serial.Open(&serial.Config{
		Address:  config.Address,
		BaudRate: config.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  config.Timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", config.Address)
	}

	m, err = NewMSDEM(port, config.Nodes, config.Settle)
	if err != nil {
		port.Close()
		return nil, err
	}

	m.log = m.log.WithField("device", config.Address)
	return m, nil
}

// NewMSDEM wraps an already open port. The init sequence puts every node into
// PWM mode and then stops them.
func NewMSDEM(port Port, nodes NodeMap, settle time.Duration) (m *MSDEM, err error) {
	m = &MSDEM{
		port:   port,
		nodes:  nodes,
		settle: settle,
		log:    log.WithField("driver", "msdem"),
	}

	if err = m.write(ModeCmd(nodes.Both, MODE_PWM)); err != nil {
		return nil, errors.Wrap(err, "set pwm mode")
	}
	m.Settle()
	if err = m.write(PowerCmd(nodes.Both, 0)); err != nil {
		return nil, errors.Wrap(err, "initial stop")
	}

	m.log.Info("motor driver ready")
	return m, nil
}

func (m *MSDEM) Send(sel Selector, power int) error {
	node, err := m.nodes.Node(sel)
	if err != nil {
		return err
	}

	m.log.WithFields(log.Fields{"wheel": sel, "power": power}).Debug("send")
	return m.write(PowerCmd(node, power))
}

func (m *MSDEM) Settle() {
	if m.settle > 0 {
		time.Sleep(m.settle)
	}
}

// Close stops both wheels and releases the port. Calling it more than once is
// safe.
func (m *MSDEM) Close() error {
	if err := m.write(PowerCmd(m.nodes.Both, 0)); err == ErrClosed {
		return nil
	} else if err != nil {
		m.log.WithError(err).Warn("unable to stop wheels on close")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	return m.port.Close()
}

func (m *MSDEM) write(cmd Command) error {
	// format outside of the critical section
	buf := cmd.Bytes()

	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return ErrClosed
	}

	_, err := m.port.Write(buf)
	return err
}
