package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"growmat/backend/internal/environment"
	"growmat/backend/internal/watering"
)

func TestObserveResult(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveResult(watering.Result{Decision: watering.DecisionMoistureOK})
	m.ObserveResult(watering.Result{
		Decision: watering.DecisionWatered,
		Session: &watering.Session{
			Outcome:     watering.OutcomeCompleted,
			Elapsed:     10 * time.Second,
			WaterUsedML: 100,
		},
	})
	m.ObserveSession(watering.Session{Manual: true, Outcome: watering.OutcomeCancelled, WaterUsedML: 25})

	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("watered")); got != 1 {
		t.Errorf("evaluations{watered} = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.sessions.WithLabelValues("cancelled", "true")); got != 1 {
		t.Errorf("sessions{cancelled,manual} = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.waterUsed); got != 125 {
		t.Errorf("water used = %v, want 125", got)
	}
}

func TestObserveSnapshot(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveSnapshot(watering.Snapshot{
		HasReading:      true,
		MoisturePercent: 42.5,
		WaterLeftML:     800,
		CyclesDone:      2,
		IsWatering:      true,
	})

	expected := `
# HELP growmat_tank_remaining_ml Water left in the tank
# TYPE growmat_tank_remaining_ml gauge
growmat_tank_remaining_ml 800
# HELP growmat_watering_active 1 while the pump runs
# TYPE growmat_watering_active gauge
growmat_watering_active 1
`
	if err := testutil.CollectAndCompare(m.registry, strings.NewReader(expected),
		"growmat_tank_remaining_ml", "growmat_watering_active"); err != nil {
		t.Error(err)
	}

	if got := testutil.ToFloat64(m.moisture); got != 42.5 {
		t.Errorf("moisture = %v, want 42.5", got)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveError("moisture_read")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `growmat_supervisor_errors_total{tag="moisture_read"} 1`) {
		t.Errorf("exposition missing error counter:\n%s", body)
	}
}

func TestObserveEnvironment(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveEnvironment(environment.Reading{
		TemperatureC: 22.5,
		HumidityPct:  61,
		PressureHPa:  1013.25,
		GasOhms:      48000,
		Lux:          600,
		UVIndex:      2,
		HeaterStable: true,
	})

	expected := `
# HELP growmat_environment_gas_heater_stable 1 once the gas sensor heater is stable
# TYPE growmat_environment_gas_heater_stable gauge
growmat_environment_gas_heater_stable 1
# HELP growmat_environment_temperature_celsius Corrected air temperature
# TYPE growmat_environment_temperature_celsius gauge
growmat_environment_temperature_celsius 22.5
`
	if err := testutil.CollectAndCompare(m.registry, strings.NewReader(expected),
		"growmat_environment_temperature_celsius", "growmat_environment_gas_heater_stable"); err != nil {
		t.Error(err)
	}

	if got := testutil.ToFloat64(m.pressure); got != 1013.25 {
		t.Errorf("pressure = %v, want 1013.25", got)
	}

	if got := testutil.ToFloat64(m.light); got != 600 {
		t.Errorf("light = %v, want 600", got)
	}
}
