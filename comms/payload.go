package comms

import (
	"time"

	"github.com/CodedInternet/gorover/onboard"
)

type StatePayload struct {
	onboard.State
	Pose *onboard.Pose `json:"pose,omitempty"`
	Time time.Time     `json:"time"`
}

func NewStatePayload(state onboard.State, pose *onboard.Pose) StatePayload {
	return StatePayload{
		State: state,
		Pose:  pose,
		Time:  time.Now(),
	}
}

func (p StatePayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
