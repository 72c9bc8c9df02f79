package environment

import (
	"errors"
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCorrections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "temperature offset", got: CorrectTemperature(25, 3), want: 22},
		{name: "humidity at corrected temperature", got: CorrectHumidity(50, 25, 22), want: 65},
		{name: "humidity without offset", got: CorrectHumidity(50, 25, 25), want: 50},
		{name: "humidity clamps high", got: CorrectHumidity(90, 20, 10), want: 100},
		{name: "humidity clamps low", got: CorrectHumidity(10, 20, 40), want: 0},
		{name: "sea level at zero altitude", got: SeaLevelPressure(101325, 15, 0), want: 1013.25},
		{name: "sea level at 100m", got: SeaLevelPressure(100000, 15, 100), want: 1011.8541239185158},
		{name: "lux", got: Lux(1000), want: 600},
		{name: "uv index", got: UVIndex(2300), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if !approx(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestDescriptions(t *testing.T) {
	t.Parallel()

	pressure := []struct {
		hpa  float64
		want PressureDescription
	}{
		{hpa: 960, want: PressureStorm},
		{hpa: 970, want: PressureRain},
		{hpa: 990, want: PressureChange},
		{hpa: 1013.25, want: PressureFair},
		{hpa: 1030, want: PressureDry},
	}

	for _, tt := range pressure {
		if got := DescribePressure(tt.hpa); got != tt.want {
			t.Errorf("DescribePressure(%v) = %q, want %q", tt.hpa, got, tt.want)
		}
	}

	humidity := []struct {
		pct  float64
		want HumidityDescription
	}{
		{pct: 40, want: HumidityBad},
		{pct: 41, want: HumidityGood},
		{pct: 79.9, want: HumidityGood},
		{pct: 80, want: HumidityBad},
	}

	for _, tt := range humidity {
		if got := DescribeHumidity(tt.pct); got != tt.want {
			t.Errorf("DescribeHumidity(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}

	light := []struct {
		lux  float64
		want LightDescription
	}{
		{lux: 0, want: LightDark},
		{lux: 50, want: LightDim},
		{lux: 100, want: LightLight},
		{lux: 499, want: LightLight},
		{lux: 500, want: LightBright},
	}

	for _, tt := range light {
		if got := DescribeLight(tt.lux); got != tt.want {
			t.Errorf("DescribeLight(%v) = %q, want %q", tt.lux, got, tt.want)
		}
	}
}

func TestSampleValidate(t *testing.T) {
	t.Parallel()

	valid := Sample{TemperatureC: 24, PressurePa: 101325, HumidityPct: 55, GasOhms: 50000}

	tests := []struct {
		name    string
		modify  func(*Sample)
		wantErr error
	}{
		{name: "valid", modify: func(*Sample) {}},
		{name: "NaN temperature", modify: func(s *Sample) { s.TemperatureC = math.NaN() }, wantErr: ErrImplausibleSample},
		{name: "infinite gas", modify: func(s *Sample) { s.GasOhms = math.Inf(1) }, wantErr: ErrImplausibleSample},
		{name: "too hot", modify: func(s *Sample) { s.TemperatureC = 120 }, wantErr: ErrImplausibleSample},
		{name: "no pressure", modify: func(s *Sample) { s.PressurePa = 0 }, wantErr: ErrImplausibleSample},
		{name: "humidity above 100", modify: func(s *Sample) { s.HumidityPct = 101 }, wantErr: ErrImplausibleSample},
		{name: "negative gas", modify: func(s *Sample) { s.GasOhms = -1 }, wantErr: ErrImplausibleSample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := valid
			tt.modify(&s)

			if err := s.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCondition(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Sample{
		TemperatureC: 25,
		PressurePa:   101325,
		HumidityPct:  50,
		GasOhms:      42000,
		HeaterStable: true,
		AmbientLight: 1000,
		UV:           4600,
	}

	got := Condition(s, Calibration{TemperatureOffset: 3}, at)

	want := Reading{
		TemperatureC: 22,
		HumidityPct:  65,
		PressureHPa:  1013.25,
		GasOhms:      42000,
		Lux:          600,
		UVIndex:      2,
		HeaterStable: true,
		Pressure:     PressureFair,
		Humidity:     HumidityGood,
		Light:        LightBright,
		At:           at,
	}

	if got != want {
		t.Errorf("Condition() = %+v, want %+v", got, want)
	}
}
