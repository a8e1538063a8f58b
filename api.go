package main

import (
	"errors"
	"net/http"

	"github.com/CodedInternet/gorover/comms"
	"github.com/CodedInternet/gorover/onboard"
	"github.com/CodedInternet/gorover/onboard/input"
	"github.com/CodedInternet/gorover/onboard/motion"
	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

//---
// Generic payloads
//---

type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrBusy(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Rover is busy.",
		ErrorText:      err.Error(),
	}
}

type AcceptedPayload struct {
	Command string `json:"command"`
}

func (p *AcceptedPayload) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

//---
// Helper functions
//---

// currentPose is only known when driving the simulator.
func currentPose() *onboard.Pose {
	if ENV.Board == nil {
		return nil
	}
	pose := ENV.Board.Pose()
	return &pose
}

func submit(w http.ResponseWriter, r *http.Request, cmd onboard.Command) {
	if err := ENV.Rover.Submit(cmd); err != nil {
		render.Render(w, r, ErrBusy(err))
		return
	}
	render.Render(w, r, &AcceptedPayload{Command: cmd.Kind.String()})
}

//---
// Handlers
//---

func StateHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, comms.NewStatePayload(ENV.Rover.State(), currentPose()))
}

func SpeedHandler(w http.ResponseWriter, r *http.Request) {
	preset, err := motion.ParsePreset(chi.URLParam(r, "preset"))
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	submit(w, r, onboard.Command{Kind: onboard.CmdPreset, Preset: preset})
}

func LightHandler(w http.ResponseWriter, r *http.Request) {
	b, err := input.ParseButton(chi.URLParam(r, "button"))
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	i, ok := onboard.LightIndex(b)
	if !ok {
		render.Render(w, r, ErrInvalidRequest(errors.New("only shoulder buttons switch lights")))
		return
	}
	submit(w, r, onboard.Command{Kind: onboard.CmdLight, Relay: i})
}

// StopHandler lets go of any dashboard input as well as asking the rover to
// coast to a stop.
func StopHandler(w http.ResponseWriter, r *http.Request) {
	ENV.Conductor.Reset()
	submit(w, r, onboard.Command{Kind: onboard.CmdStop})
}
