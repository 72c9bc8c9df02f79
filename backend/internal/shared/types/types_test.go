package types

import (
	"testing"
	"time"

	"growmat/backend/internal/environment"
	"growmat/backend/internal/supervisor"
	"growmat/backend/internal/watering"
)

func TestRound2(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: 12.3456, want: 12.35},
		{in: 12.344, want: 12.34},
		{in: -1.005, want: -1},
		{in: 99.999, want: 100},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWateringState(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no reading", func(t *testing.T) {
		t.Parallel()

		state := NewWateringState("dev", watering.Snapshot{WaterLeftML: 999.999}, at)
		if state.MoisturePercent != nil || state.LastWatered != nil {
			t.Errorf("optional fields set: %+v", state)
		}

		if state.WaterLeftML != 1000 {
			t.Errorf("WaterLeftML = %v, want 1000", state.WaterLeftML)
		}
	})

	t.Run("with reading", func(t *testing.T) {
		t.Parallel()

		state := NewWateringState("dev", watering.Snapshot{
			HasReading:       true,
			MoisturePercent:  41.237,
			LastWatered:      at.Add(-time.Minute),
			SinceLastWatered: time.Minute,
			BlockRemaining:   1500 * time.Millisecond,
		}, at)

		if state.MoisturePercent == nil || *state.MoisturePercent != 41.24 {
			t.Errorf("MoisturePercent = %v, want 41.24", state.MoisturePercent)
		}

		if state.SinceLastWateredSeconds != 60 || state.BlockRemainingSecs != 1.5 {
			t.Errorf("durations = %v/%v", state.SinceLastWateredSeconds, state.BlockRemainingSecs)
		}
	})
}

func TestNewDeviceStatus(t *testing.T) {
	t.Parallel()

	status := NewDeviceStatus("dev", "v1", supervisor.Status{
		Uptime:         90 * time.Second,
		Errors:         map[string]supervisor.ErrorInfo{"watering": {Count: 3}},
		HeapAllocBytes: 3 << 19,
	}, time.Time{})

	if status.Status != StatusOnline || status.Errors["watering"] != 3 {
		t.Errorf("status = %+v", status)
	}

	if status.UptimeSeconds != 90 || status.HeapAllocMB != 1.5 {
		t.Errorf("uptime/heap = %v/%v", status.UptimeSeconds, status.HeapAllocMB)
	}
}

func TestNewEnvironmentState(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	state := NewEnvironmentState("dev", environment.Reading{
		TemperatureC: 22.456,
		HumidityPct:  64.999,
		PressureHPa:  1011.8541,
		Lux:          600,
		UVIndex:      1.23456,
		Pressure:     environment.PressureFair,
		Humidity:     environment.HumidityGood,
		Light:        environment.LightBright,
		At:           at.Add(-time.Second),
	}, environment.Extremes{MinTemperatureC: 18.004, MaxTemperatureC: 28.006}, at)

	if state.TemperatureC != 22.46 || state.HumidityPct != 65 || state.PressureHPa != 1011.85 || state.UVIndex != 1.23 {
		t.Errorf("rounded values = %+v", state)
	}

	if state.PressureDescription != "fair" || state.HumidityDescription != "good" || state.LightDescription != "bright" {
		t.Errorf("descriptions = %q %q %q", state.PressureDescription, state.HumidityDescription, state.LightDescription)
	}

	if state.MinTemperatureC != 18 || state.MaxTemperatureC != 28.01 {
		t.Errorf("extremes = %v/%v, want 18/28.01", state.MinTemperatureC, state.MaxTemperatureC)
	}

	if !state.ReadAt.Equal(at.Add(-time.Second)) || !state.Timestamp.Equal(at) {
		t.Errorf("times = %v/%v", state.ReadAt, state.Timestamp)
	}
}
