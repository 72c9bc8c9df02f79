package types

import (
	"time"

	"growmat/backend/internal/shared/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/router"
)

// HealthResponse is the response to a health check request for local API.
// Local API includes both database and MQTT status.
type HealthResponse struct {
	// Status of the database connection
	Database bool `json:"database"`
	// Status of the MQTT broker connection
	MQTT bool `json:"mqtt"`
}

// SystemResponse describes the running device.
type SystemResponse struct {
	Device types.DeviceStatus   `json:"device"`
	Build  map[string]string    `json:"build"`
	Routes []router.RouteInfo   `json:"routes"`
	MQTT   []mqtt.OperationInfo `json:"mqtt"`
}

// TriggerResponse is returned when a manual session was accepted.
type TriggerResponse struct {
	Message string `json:"message"`
}

// AutoWateringResponse reports the automatic watering mode.
type AutoWateringResponse struct {
	AutoWatering bool `json:"autoWatering"`
}

// SetTankRequest overrides the remaining tank capacity.
type SetTankRequest struct {
	// Remaining water in millilitres
	RemainingML *float64 `json:"remainingML"`
}

// UpdateSettingRequest changes one watering setting.
type UpdateSettingRequest struct {
	// Setting key, e.g. moisture_threshold
	Key string `json:"key"`
	// New value, e.g. "35" or "15s"
	Value string `json:"value"`
}

// SettingsResponse is the current watering configuration. Durations use Go duration syntax.
type SettingsResponse struct {
	MoistureThreshold float64 `json:"moistureThreshold"`
	DryRaw            int     `json:"dryRaw"`
	WetRaw            int     `json:"wetRaw"`
	WateringDuration  string  `json:"wateringDuration"`
	MaxCycles         int     `json:"maxCycles"`
	PauseDuration     string  `json:"pauseDuration"`
	FlowRate          float64 `json:"flowRate"`
	TankCapacity      float64 `json:"tankCapacity"`
	CheckInterval     string  `json:"checkInterval"`
	SliceInterval     string  `json:"sliceInterval"`
	AutoWatering      bool    `json:"autoWatering"`
	FilterWindow      int     `json:"filterWindow"`
	FilterFloor       float64 `json:"filterFloor"`
	SensorKey         string  `json:"sensorKey"`
}

// NewSettingsResponse converts watering settings.
func NewSettingsResponse(s watering.Settings) SettingsResponse {
	return SettingsResponse{
		MoistureThreshold: s.MoistureThreshold,
		DryRaw:            s.Calibration.DryRaw,
		WetRaw:            s.Calibration.WetRaw,
		WateringDuration:  s.WateringDuration.String(),
		MaxCycles:         s.MaxCycles,
		PauseDuration:     s.PauseDuration.String(),
		FlowRate:          s.FlowRate,
		TankCapacity:      s.TankCapacity,
		CheckInterval:     s.CheckInterval.String(),
		SliceInterval:     s.SliceInterval.String(),
		AutoWatering:      s.AutoWatering,
		FilterWindow:      s.FilterWindow,
		FilterFloor:       s.FilterFloor,
		SensorKey:         s.SensorKey,
	}
}

// SessionResponse is one recorded pump session.
type SessionResponse struct {
	ID               string    `json:"id"`
	Manual           bool      `json:"manual"`
	RequestedSeconds float64   `json:"requestedSeconds"`
	ElapsedSeconds   float64   `json:"elapsedSeconds"`
	WaterUsedML      float64   `json:"waterUsedML"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	Outcome          string    `json:"outcome"`
}

// SessionsResponse lists sessions, newest first.
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// NewSessionsResponse converts stored sessions.
func NewSessionsResponse(records []store.SessionRecord) SessionsResponse {
	resp := SessionsResponse{Sessions: make([]SessionResponse, 0, len(records))}

	for _, r := range records {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:               r.ID,
			Manual:           r.Manual,
			RequestedSeconds: types.Round2(r.Requested.Seconds()),
			ElapsedSeconds:   types.Round2(r.Elapsed.Seconds()),
			WaterUsedML:      types.Round2(r.WaterUsedML),
			StartedAt:        r.StartedAt,
			FinishedAt:       r.FinishedAt,
			Outcome:          string(r.Outcome),
		})
	}

	return resp
}
