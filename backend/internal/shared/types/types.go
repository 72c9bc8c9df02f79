package types

import (
	"math"
	"time"

	"growmat/backend/internal/environment"
	"growmat/backend/internal/supervisor"
	"growmat/backend/internal/watering"
)

// ErrorResponse is the unified error response type.
// It supports both simple errors (just message) and validation errors (message + field errors).
//
//nolint:errname // ErrorResponse is an API response type, not a traditional error
type ErrorResponse struct {
	// HTTP status code (internal only, not sent to client)
	StatusCode int `json:"-"`
	// Request ID for tracking
	RequestID string `json:"requestID"`
	// High-level error message
	Message string `json:"message"`
	// Field-level validation errors
	Errors map[string]string `json:"errors,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// AddError adds a field-level error (builder pattern).
func (e *ErrorResponse) AddError(field, message string) *ErrorResponse {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}

	e.Errors[field] = message

	return e
}

// PingResponse is the response to a ping request.
type PingResponse struct {
	// Human-readable message
	Message string `json:"message"`
	// Status of the ping
	Status PingStatus `json:"status"`
}

// PingStatus represents the status of a ping request.
type PingStatus string

const (
	// PingStatusOK means the ping was successful.
	PingStatusOK PingStatus = "OK"
	// PingStatusError means there was an error with the ping.
	PingStatusError PingStatus = "ERROR"
)

// WateringState is the published view of the watering controller.
// Numbers are rounded to two decimals.
type WateringState struct {
	DeviceID string `json:"deviceID"`
	// Calibrated soil moisture, absent until the first successful read
	MoisturePercent *float64 `json:"moisturePercent,omitempty"`
	RawValue        int      `json:"rawValue"`
	FilteredValue   float64  `json:"filteredValue"`
	WaterUsedML     float64  `json:"waterUsedML"`
	WaterLeftML     float64  `json:"waterLeftML"`
	TankCapacityML  float64  `json:"tankCapacityML"`
	// Time of the last session, absent if the device never watered
	LastWatered             *time.Time `json:"lastWatered,omitempty"`
	SinceLastWateredSeconds float64    `json:"sinceLastWateredSeconds"`
	CyclesDone              int        `json:"cyclesDone"`
	CyclesMax               int        `json:"cyclesMax"`
	IsWatering              bool       `json:"isWatering"`
	AutoWatering            bool       `json:"autoWatering"`
	CyclePauseRemainingSecs float64    `json:"cyclePauseRemainingSeconds"`
	BlockRemainingSecs      float64    `json:"blockRemainingSeconds"`
	Timestamp               time.Time  `json:"timestamp"`
}

// NewWateringState converts a controller snapshot.
func NewWateringState(deviceID string, s watering.Snapshot, at time.Time) WateringState {
	state := WateringState{
		DeviceID:                deviceID,
		RawValue:                s.RawValue,
		FilteredValue:           Round2(s.FilteredValue),
		WaterUsedML:             Round2(s.WaterUsedML),
		WaterLeftML:             Round2(s.WaterLeftML),
		TankCapacityML:          Round2(s.TankCapacityML),
		SinceLastWateredSeconds: Round2(s.SinceLastWatered.Seconds()),
		CyclesDone:              s.CyclesDone,
		CyclesMax:               s.CyclesMax,
		IsWatering:              s.IsWatering,
		AutoWatering:            s.AutoWatering,
		CyclePauseRemainingSecs: Round2(s.CyclePauseRemaining.Seconds()),
		BlockRemainingSecs:      Round2(s.BlockRemaining.Seconds()),
		Timestamp:               at,
	}

	if s.HasReading {
		p := Round2(s.MoisturePercent)
		state.MoisturePercent = &p
	}

	if !s.LastWatered.IsZero() {
		t := s.LastWatered
		state.LastWatered = &t
	}

	return state
}

// DeviceStatus is the published view of the supervisor.
type DeviceStatus struct {
	DeviceID      string         `json:"deviceID"`
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	StartedAt     time.Time      `json:"startedAt"`
	UptimeSeconds float64        `json:"uptimeSeconds"`
	Processing    []string       `json:"processing"`
	Errors        map[string]int `json:"errors"`
	WatchdogFeeds uint64         `json:"watchdogFeeds"`
	LastWatchdog  *time.Time     `json:"lastWatchdog,omitempty"`
	Goroutines    int            `json:"goroutines"`
	HeapAllocMB   float64        `json:"heapAllocMB"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Device status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// NewDeviceStatus converts a supervisor status.
func NewDeviceStatus(deviceID, version string, s supervisor.Status, at time.Time) DeviceStatus {
	errs := make(map[string]int, len(s.Errors))
	for tag, info := range s.Errors {
		errs[tag] = info.Count
	}

	status := DeviceStatus{
		DeviceID:      deviceID,
		Status:        StatusOnline,
		Version:       version,
		StartedAt:     s.StartedAt,
		UptimeSeconds: Round2(s.Uptime.Seconds()),
		Processing:    s.Processing,
		Errors:        errs,
		WatchdogFeeds: s.WatchdogFeeds,
		Goroutines:    s.Goroutines,
		HeapAllocMB:   Round2(float64(s.HeapAllocBytes) / (1 << 20)),
		Timestamp:     at,
	}

	if !s.LastWatchdog.IsZero() {
		t := s.LastWatchdog
		status.LastWatchdog = &t
	}

	return status
}

// EnvironmentState is the published view of the climate sensors.
// Numbers are rounded to two decimals.
type EnvironmentState struct {
	DeviceID     string  `json:"deviceID"`
	TemperatureC float64 `json:"temperature"`
	HumidityPct  float64 `json:"humidity"`
	// Sea level pressure in hPa
	PressureHPa float64 `json:"pressure"`
	GasOhms     float64 `json:"gas"`
	Lux         float64 `json:"lux"`
	UVIndex     float64 `json:"uvi"`
	// Barometer-style description, e.g. fair
	PressureDescription string    `json:"pressureDescription"`
	HumidityDescription string    `json:"humidityDescription"`
	LightDescription    string    `json:"lightDescription"`
	MinTemperatureC     float64   `json:"minTemperature"`
	MaxTemperatureC     float64   `json:"maxTemperature"`
	MinGasOhms          float64   `json:"minGas"`
	MaxGasOhms          float64   `json:"maxGas"`
	HeaterStable        bool      `json:"heaterStable"`
	ReadAt              time.Time `json:"readAt"`
	Timestamp           time.Time `json:"timestamp"`
}

// NewEnvironmentState converts a conditioned reading and the extremes seen so far.
func NewEnvironmentState(deviceID string, r environment.Reading, e environment.Extremes, at time.Time) EnvironmentState {
	return EnvironmentState{
		DeviceID:            deviceID,
		TemperatureC:        Round2(r.TemperatureC),
		HumidityPct:         Round2(r.HumidityPct),
		PressureHPa:         Round2(r.PressureHPa),
		GasOhms:             Round2(r.GasOhms),
		Lux:                 Round2(r.Lux),
		UVIndex:             Round2(r.UVIndex),
		PressureDescription: string(r.Pressure),
		HumidityDescription: string(r.Humidity),
		LightDescription:    string(r.Light),
		MinTemperatureC:     Round2(e.MinTemperatureC),
		MaxTemperatureC:     Round2(e.MaxTemperatureC),
		MinGasOhms:          Round2(e.MinGasOhms),
		MaxGasOhms:          Round2(e.MaxGasOhms),
		HeaterStable:        r.HeaterStable,
		ReadAt:              r.At,
		Timestamp:           at,
	}
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
