package watering

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownSetting is returned by Settings.With for keys that cannot be updated.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting is returned when a setting value fails validation.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Setting keys accepted by Settings.With.
const (
	KeyMoistureThreshold = "moisture_threshold"
	KeyDryRaw            = "dry_raw"
	KeyWetRaw            = "wet_raw"
	KeyWateringDuration  = "watering_duration"
	KeyMaxCycles         = "max_cycles"
	KeyPauseDuration     = "pause_duration"
	KeyFlowRate          = "flow_rate"
	KeyTankCapacity      = "tank_capacity"
	KeyCheckInterval     = "check_interval"
	KeyAutoWatering      = "auto_watering"
)

// Settings is the watering configuration. Values are immutable; use With to derive an updated copy.
type Settings struct {
	// MoistureThreshold is the percentage below which the soil needs water.
	MoistureThreshold float64 `yaml:"moisture_threshold" json:"moistureThreshold"`
	// Calibration maps raw sensor samples to percent.
	Calibration Calibration `yaml:"calibration" json:"calibration"`
	// WateringDuration is how long one session runs the pump.
	WateringDuration time.Duration `yaml:"watering_duration" json:"wateringDuration"`
	// MaxCycles is the number of consecutive sessions before a cycle pause.
	MaxCycles int `yaml:"max_cycles" json:"maxCycles"`
	// PauseDuration is the length of the cycle pause.
	PauseDuration time.Duration `yaml:"pause_duration" json:"pauseDuration"`
	// FlowRate is the pump flow in millilitres per minute.
	FlowRate float64 `yaml:"flow_rate" json:"flowRate"`
	// TankCapacity is the full reservoir size in millilitres.
	TankCapacity float64 `yaml:"tank_capacity" json:"tankCapacity"`
	// CheckInterval is the period of the moisture evaluation.
	CheckInterval time.Duration `yaml:"check_interval" json:"checkInterval"`
	// SliceInterval bounds each pump wait; the watchdog is fed after every slice.
	SliceInterval time.Duration `yaml:"slice_interval" json:"sliceInterval"`
	// AutoWatering is the initial automatic watering mode.
	AutoWatering bool `yaml:"auto_watering" json:"autoWatering"`
	// FilterWindow is the spike filter history size.
	FilterWindow int `yaml:"filter_window" json:"filterWindow"`
	// FilterFloor is the minimum deviation treated as a spike.
	FilterFloor float64 `yaml:"filter_floor" json:"filterFloor"`
	// SensorKey names the moisture sensor in the spike filter.
	SensorKey string `yaml:"sensor_key" json:"sensorKey"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MoistureThreshold: 30,
		Calibration:       Calibration{DryRaw: 44000, WetRaw: 20000},
		WateringDuration:  10 * time.Second,
		MaxCycles:         3,
		PauseDuration:     30 * time.Minute,
		FlowRate:          350,
		TankCapacity:      2500,
		CheckInterval:     time.Minute,
		SliceInterval:     5 * time.Second,
		AutoWatering:      true,
		FilterWindow:      DefaultFilterWindow,
		FilterFloor:       DefaultFilterFloor,
		SensorKey:         "soil_moisture",
	}
}

// Validate checks the settings. Equal calibration points are accepted here:
// they are reported on every cycle as a configuration error instead.
func (s Settings) Validate() error {
	var errs []error

	if !finite(s.MoistureThreshold) || s.MoistureThreshold < 0 || s.MoistureThreshold > 100 {
		errs = append(errs, fmt.Errorf("%w: %s must be within [0, 100]", ErrInvalidSetting, KeyMoistureThreshold))
	}

	if s.WateringDuration <= 0 || s.WateringDuration >= MaxDeadline {
		errs = append(errs, fmt.Errorf("%w: %s must be within (0, %s)", ErrInvalidSetting, KeyWateringDuration, MaxDeadline))
	}

	if s.MaxCycles < 1 {
		errs = append(errs, fmt.Errorf("%w: %s must be at least 1", ErrInvalidSetting, KeyMaxCycles))
	}

	if s.PauseDuration < 0 || s.PauseDuration >= MaxDeadline {
		errs = append(errs, fmt.Errorf("%w: %s must be within [0, %s)", ErrInvalidSetting, KeyPauseDuration, MaxDeadline))
	}

	if !finite(s.FlowRate) || s.FlowRate < 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidSetting, KeyFlowRate))
	}

	if !finite(s.TankCapacity) || s.TankCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidSetting, KeyTankCapacity))
	}

	if s.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidSetting, KeyCheckInterval))
	}

	if s.SliceInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: slice_interval must be positive", ErrInvalidSetting))
	}

	if !finite(s.FilterFloor) || s.FilterFloor < 0 {
		errs = append(errs, fmt.Errorf("%w: filter_floor must be a non-negative number", ErrInvalidSetting))
	}

	if s.FilterWindow < 1 {
		errs = append(errs, fmt.Errorf("%w: filter_window must be at least 1", ErrInvalidSetting))
	}

	if s.SensorKey == "" {
		errs = append(errs, fmt.Errorf("%w: sensor_key is required", ErrInvalidSetting))
	}

	return errors.Join(errs...)
}

// With returns a copy of s with key set to the parsed value. The copy is validated before it is returned.
func (s Settings) With(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)

	var err error

	switch strings.ToLower(key) {
	case KeyMoistureThreshold:
		s.MoistureThreshold, err = strconv.ParseFloat(value, 64)
	case KeyDryRaw:
		s.Calibration.DryRaw, err = strconv.Atoi(value)
	case KeyWetRaw:
		s.Calibration.WetRaw, err = strconv.Atoi(value)
	case KeyWateringDuration:
		s.WateringDuration, err = parseDuration(value)
	case KeyMaxCycles:
		s.MaxCycles, err = strconv.Atoi(value)
	case KeyPauseDuration:
		s.PauseDuration, err = parseDuration(value)
	case KeyFlowRate:
		s.FlowRate, err = strconv.ParseFloat(value, 64)
	case KeyTankCapacity:
		s.TankCapacity, err = strconv.ParseFloat(value, 64)
	case KeyCheckInterval:
		s.CheckInterval, err = parseDuration(value)
	case KeyAutoWatering:
		s.AutoWatering, err = strconv.ParseBool(value)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	if err != nil {
		return s, fmt.Errorf("%w: %s: %w", ErrInvalidSetting, key, err)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}

	return s, nil
}

// parseDuration accepts Go duration strings and plain numbers of seconds.
func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		ns := secs * float64(time.Second)
		if !finite(ns) || math.Abs(ns) >= math.MaxInt64 {
			return 0, fmt.Errorf("duration %q out of range", value)
		}

		return time.Duration(ns), nil
	}

	return time.ParseDuration(value)
}
