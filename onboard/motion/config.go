package motion

import (
	"fmt"

	rerrors "github.com/CodedInternet/gorover/onboard/errors"
)

// Preset names one of the two speed caps the operator can switch between.
type Preset string

const (
	High Preset = "high"
	Low  Preset = "low"
)

func ParsePreset(name string) (Preset, error) {
	switch Preset(name) {
	case High, Low:
		return Preset(name), nil
	}
	return "", rerrors.PresetNameError{Name: name}
}

// Config holds the constants of the power ramp. All values are in driver PWM
// units.
type Config struct {
	Step     int `yaml:"step" json:"step"`
	Depart   int `yaml:"depart" json:"depart"`
	Stop     int `yaml:"stop" json:"stop"`
	MinDelta int `yaml:"min_delta" json:"min_delta"`
}

type Presets struct {
	High  int    `yaml:"high" json:"high"`
	Low   int    `yaml:"low" json:"low"`
	Start Preset `yaml:"start" json:"start"`
}

func DefaultConfig() Config {
	return Config{
		Step:     10,
		Depart:   120,
		Stop:     100,
		MinDelta: 50,
	}
}

func DefaultPresets() Presets {
	return Presets{
		High:  400,
		Low:   200,
		Start: High,
	}
}

func (p Presets) Max(preset Preset) (int, error) {
	switch preset {
	case High:
		return p.High, nil
	case Low:
		return p.Low, nil
	}
	return 0, rerrors.PresetNameError{Name: string(preset)}
}

// Validate checks the relationships the ramp depends on:
// 0 <= stop < depart < max for both presets and a positive step.
func Validate(conf Config, presets Presets) error {
	switch {
	case conf.Step <= 0:
		return rerrors.ConfigurationError{Field: "step", Reason: fmt.Sprintf("must be positive, got %d", conf.Step)}
	case conf.MinDelta < 0:
		return rerrors.ConfigurationError{Field: "min_delta", Reason: fmt.Sprintf("must not be negative, got %d", conf.MinDelta)}
	case conf.Stop < 0:
		return rerrors.ConfigurationError{Field: "stop", Reason: fmt.Sprintf("must not be negative, got %d", conf.Stop)}
	case conf.Stop >= conf.Depart:
		return rerrors.ConfigurationError{Field: "stop", Reason: fmt.Sprintf("%d must be below depart %d", conf.Stop, conf.Depart)}
	}

	for _, preset := range []Preset{High, Low} {
		max, _ := presets.Max(preset)
		if conf.Depart >= max {
			return rerrors.ConfigurationError{
				Field:  "presets." + string(preset),
				Reason: fmt.Sprintf("%d must be above depart %d", max, conf.Depart),
			}
		}
	}

	if _, err := presets.Max(presets.Start); err != nil {
		return rerrors.ConfigurationError{Field: "presets.start", Reason: err.Error()}
	}

	return nil
}
