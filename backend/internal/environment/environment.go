// Package environment conditions the grow-house climate sensors: a BME68x-style
// temperature/pressure/humidity/gas sensor and an LTR390-style light and UV sensor.
package environment

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrImplausibleSample is returned for samples outside the physical sensor range.
var ErrImplausibleSample = errors.New("implausible environment sample")

// Sample is one raw reading of the climate sensors.
type Sample struct {
	// TemperatureC is the uncorrected die temperature.
	TemperatureC float64
	// PressurePa is the station pressure in pascal.
	PressurePa float64
	// HumidityPct is the relative humidity measured at TemperatureC.
	HumidityPct float64
	// GasOhms is the gas sensor resistance.
	GasOhms float64
	// HeaterStable reports whether the gas heater reached its target temperature.
	HeaterStable bool
	// AmbientLight and UV are the raw light sensor counts.
	AmbientLight uint32
	UV           uint32
}

// Reading is a conditioned sample.
type Reading struct {
	TemperatureC float64
	HumidityPct  float64
	PressureHPa  float64
	GasOhms      float64
	Lux          float64
	UVIndex      float64
	HeaterStable bool
	Pressure     PressureDescription
	Humidity     HumidityDescription
	Light        LightDescription
	At           time.Time
}

// Extremes are the lowest and highest values seen since start.
type Extremes struct {
	MinTemperatureC float64
	MaxTemperatureC float64
	MinGasOhms      float64
	MaxGasOhms      float64
}

// Calibration corrects a sensor that sits next to a warm board.
type Calibration struct {
	// TemperatureOffset is subtracted from the measured temperature.
	TemperatureOffset float64
	// AltitudeM is the station altitude used for the sea level pressure.
	AltitudeM float64
}

// Validate rejects non-finite samples and values no real sensor reports.
func (s Sample) Validate() error {
	values := map[string]float64{
		"temperature": s.TemperatureC,
		"pressure":    s.PressurePa,
		"humidity":    s.HumidityPct,
		"gas":         s.GasOhms,
	}

	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrImplausibleSample, name, v)
		}
	}

	switch {
	case s.TemperatureC < -40 || s.TemperatureC > 85:
		return fmt.Errorf("%w: temperature %.2f outside [-40, 85]", ErrImplausibleSample, s.TemperatureC)
	case s.PressurePa < 30000 || s.PressurePa > 110000:
		return fmt.Errorf("%w: pressure %.0f outside [30000, 110000]", ErrImplausibleSample, s.PressurePa)
	case s.HumidityPct < 0 || s.HumidityPct > 100:
		return fmt.Errorf("%w: humidity %.2f outside [0, 100]", ErrImplausibleSample, s.HumidityPct)
	case s.GasOhms < 0:
		return fmt.Errorf("%w: negative gas resistance", ErrImplausibleSample)
	}

	return nil
}

// Condition turns a raw sample into a reading.
func Condition(s Sample, cal Calibration, at time.Time) Reading {
	temperature := CorrectTemperature(s.TemperatureC, cal.TemperatureOffset)
	humidity := CorrectHumidity(s.HumidityPct, s.TemperatureC, temperature)
	pressure := SeaLevelPressure(s.PressurePa, temperature, cal.AltitudeM)
	lux := Lux(s.AmbientLight)

	return Reading{
		TemperatureC: temperature,
		HumidityPct:  humidity,
		PressureHPa:  pressure,
		GasOhms:      s.GasOhms,
		Lux:          lux,
		UVIndex:      UVIndex(s.UV),
		HeaterStable: s.HeaterStable,
		Pressure:     DescribePressure(pressure),
		Humidity:     DescribeHumidity(humidity),
		Light:        DescribeLight(lux),
		At:           at,
	}
}

// CorrectTemperature removes the self-heating offset.
func CorrectTemperature(measured, offset float64) float64 {
	return measured - offset
}

// CorrectHumidity moves the relative humidity from the measured to the corrected temperature.
// It estimates the dew point as T - (100 - RH)/5 and clamps the result to [0, 100].
func CorrectHumidity(humidity, measured, corrected float64) float64 {
	dewPoint := measured - (100-humidity)/5

	return min(max(100-5*(corrected-dewPoint), 0), 100)
}

// SeaLevelPressure converts station pressure in Pa to sea level pressure in hPa.
func SeaLevelPressure(pressurePa, temperatureC, altitudeM float64) float64 {
	hpa := pressurePa / 100

	return hpa + (hpa*9.80665*altitudeM)/(287*(273+temperatureC+altitudeM/400))
}

// Lux converts raw ambient light counts at 3x gain.
func Lux(ambient uint32) float64 {
	return float64(ambient) * 0.6
}

// UVIndex converts raw UV counts at 3x gain.
func UVIndex(uv uint32) float64 {
	return float64(uv) / 2300
}

// PressureDescription is a barometer-style forecast word.
type PressureDescription string

const (
	PressureStorm  PressureDescription = "storm"
	PressureRain   PressureDescription = "rain"
	PressureChange PressureDescription = "change"
	PressureFair   PressureDescription = "fair"
	PressureDry    PressureDescription = "dry"
)

// DescribePressure maps sea level pressure in hPa onto a barometer scale.
func DescribePressure(hpa float64) PressureDescription {
	switch {
	case hpa < 970:
		return PressureStorm
	case hpa < 990:
		return PressureRain
	case hpa < 1010:
		return PressureChange
	case hpa < 1030:
		return PressureFair
	default:
		return PressureDry
	}
}

// HumidityDescription rates the relative humidity for plants.
type HumidityDescription string

const (
	HumidityGood HumidityDescription = "good"
	HumidityBad  HumidityDescription = "bad"
)

// DescribeHumidity reports good between 40% and 80% exclusive.
func DescribeHumidity(pct float64) HumidityDescription {
	if pct > 40 && pct < 80 {
		return HumidityGood
	}

	return HumidityBad
}

// LightDescription is a coarse light level.
type LightDescription string

const (
	LightDark   LightDescription = "dark"
	LightDim    LightDescription = "dim"
	LightLight  LightDescription = "light"
	LightBright LightDescription = "bright"
)

// DescribeLight maps lux onto a coarse light level.
func DescribeLight(lux float64) LightDescription {
	switch {
	case lux < 50:
		return LightDark
	case lux < 100:
		return LightDim
	case lux < 500:
		return LightLight
	default:
		return LightBright
	}
}
