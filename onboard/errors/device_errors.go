package errors

import "fmt"

// ConfigurationError is returned when a rover or controller is built from
// constants that cannot work together.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (err ConfigurationError) Error() string {
	if len(err.Field) == 0 {
		err.Field = "UNKNOWN"
	}

	return fmt.Sprintf("invalid configuration; %s %s", err.Field, err.Reason)
}

type InvalidArgumentError struct {
	Op     string
	Name   string
	Value  int
	Reason string
}

func (err InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument to %s; %s=%d %s", err.Op, err.Name, err.Value, err.Reason)
}

// StateCorrectionWarning reports a channel found outside of the current speed
// cap. The channel has already been clamped when this is produced.
type StateCorrectionWarning struct {
	Wheel     string
	Observed  int
	Corrected int
}

func (err StateCorrectionWarning) Error() string {
	return fmt.Sprintf("wheel %s power %d outside of limits, corrected to %d", err.Wheel, err.Observed, err.Corrected)
}

// TransportError wraps a failed write to the motor driver. The controller
// state is not rolled back when one of these occurs.
type TransportError struct {
	Selector string
	Power    int
	Err      error
}

func (err TransportError) Error() string {
	return fmt.Sprintf("unable to send power %d to %s: %v", err.Power, err.Selector, err.Err)
}

func (err TransportError) Unwrap() error {
	return err.Err
}

func (err TransportError) Cause() error {
	return err.Err
}

type PresetNameError struct {
	Name string
}

func (err PresetNameError) Error() string {
	return fmt.Sprintf("no such speed preset %s", err.Name)
}
