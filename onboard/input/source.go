package input

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Source is polled once per control cycle.
type Source interface {
	Poll() (Reading, error)
}

// Remote is a latched source fed by something other than the control loop,
// usually the dashboard websocket. Buttons stay held until released or until
// Reset is called.
type Remote struct {
	lock    sync.Mutex
	reading Reading
	updated time.Time
}

func NewRemote() *Remote {
	return &Remote{reading: Neutral}
}

func (r *Remote) Press(b Button) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reading.Buttons |= b
	r.updated = time.Now()
}

func (r *Remote) Release(b Button) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reading.Buttons &^= b
	r.updated = time.Now()
}

func (r *Remote) SetStick(s Stick) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reading.Stick = s
	r.updated = time.Now()
}

// Reset drops everything that is held, for example when the client goes away.
func (r *Remote) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.reading = Neutral
	r.updated = time.Now()
}

// Updated is the time of the last change.
func (r *Remote) Updated() time.Time {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.updated
}

func (r *Remote) Poll() (Reading, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reading, nil
}

// Merge polls every source and ORs the buttons together. The first stick that
// is off center wins. A failing source counts as idle, the error is only
// returned when every source fails.
type Merge []Source

func (m Merge) Poll() (Reading, error) {
	merged := Neutral
	var failed []error
	stickSet := false

	for _, s := range m {
		r, err := s.Poll()
		if err != nil {
			failed = append(failed, err)
			continue
		}

		merged.Buttons |= r.Buttons
		if !stickSet && r.Stick != Center {
			merged.Stick = r.Stick
			stickSet = true
		}
	}

	if len(m) > 0 && len(failed) == len(m) {
		return Neutral, errors.Wrapf(failed[0], "all %d input sources failed", len(m))
	}
	return merged, nil
}
