package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"growmat/backend/internal/environment"
	"growmat/backend/internal/watering"
)

const namespace = "growmat"

// Metrics holds the collectors of one device.
type Metrics struct {
	registry *prometheus.Registry

	evaluations     *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	waterUsed       prometheus.Counter
	errors          *prometheus.CounterVec

	moisture   prometheus.Gauge
	tankLeft   prometheus.Gauge
	cyclesDone prometheus.Gauge
	watering   prometheus.Gauge
	auto       prometheus.Gauge

	temperature  prometheus.Gauge
	humidity     prometheus.Gauge
	pressure     prometheus.Gauge
	gas          prometheus.Gauge
	light        prometheus.Gauge
	uv           prometheus.Gauge
	heaterStable prometheus.Gauge
}

// New creates the collectors and registers them on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Watering evaluation cycles by decision",
		}, []string{"decision"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watering_sessions_total",
			Help:      "Pump sessions by outcome",
		}, []string{"outcome", "manual"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "watering_session_seconds",
			Help:      "Pump run time per session",
			Buckets:   prometheus.LinearBuckets(2, 2, 15),
		}),
		waterUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "water_used_ml_total",
			Help:      "Water pumped in millilitres",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_errors_total",
			Help:      "Errors reported to the supervisor by tag",
		}, []string{"tag"}),
		moisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_percent",
			Help:      "Last calibrated soil moisture",
		}),
		tankLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tank_remaining_ml",
			Help:      "Water left in the tank",
		}),
		cyclesDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watering_cycles_done",
			Help:      "Consecutive watering cycles since the last pause",
		}),
		watering: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watering_active",
			Help:      "1 while the pump runs",
		}),
		auto: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_watering_enabled",
			Help:      "1 when automatic watering is enabled",
		}),
		temperature:  environmentGauge("temperature_celsius", "Corrected air temperature"),
		humidity:     environmentGauge("humidity_percent", "Relative humidity at the corrected temperature"),
		pressure:     environmentGauge("pressure_hpa", "Sea level pressure"),
		gas:          environmentGauge("gas_resistance_ohms", "Gas sensor resistance"),
		light:        environmentGauge("light_lux", "Ambient light"),
		uv:           environmentGauge("uv_index", "UV index"),
		heaterStable: environmentGauge("gas_heater_stable", "1 once the gas sensor heater is stable"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.evaluations, m.sessions, m.sessionDuration, m.waterUsed, m.errors,
		m.moisture, m.tankLeft, m.cyclesDone, m.watering, m.auto,
		m.temperature, m.humidity, m.pressure, m.gas, m.light, m.uv, m.heaterStable,
	)

	return m
}

func environmentGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "environment",
		Name:      name,
		Help:      help,
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records one evaluation cycle.
func (m *Metrics) ObserveResult(res watering.Result) {
	m.evaluations.WithLabelValues(string(res.Decision)).Inc()

	if res.Session != nil {
		m.ObserveSession(*res.Session)
	}
}

// ObserveSession records one pump session.
func (m *Metrics) ObserveSession(s watering.Session) {
	manual := "false"
	if s.Manual {
		manual = "true"
	}

	m.sessions.WithLabelValues(string(s.Outcome), manual).Inc()
	m.sessionDuration.Observe(s.Elapsed.Seconds())
	m.waterUsed.Add(s.WaterUsedML)
}

// ObserveSnapshot updates the state gauges.
func (m *Metrics) ObserveSnapshot(s watering.Snapshot) {
	if s.HasReading {
		m.moisture.Set(s.MoisturePercent)
	}

	m.tankLeft.Set(s.WaterLeftML)
	m.cyclesDone.Set(float64(s.CyclesDone))
	m.watering.Set(boolToFloat(s.IsWatering))
	m.auto.Set(boolToFloat(s.AutoWatering))
}

// ObserveEnvironment updates the climate gauges.
func (m *Metrics) ObserveEnvironment(r environment.Reading) {
	m.temperature.Set(r.TemperatureC)
	m.humidity.Set(r.HumidityPct)
	m.pressure.Set(r.PressureHPa)
	m.gas.Set(r.GasOhms)
	m.light.Set(r.Lux)
	m.uv.Set(r.UVIndex)
	m.heaterStable.Set(boolToFloat(r.HeaterStable))
}

// ObserveError counts a supervisor error tag. It matches the supervisor error hook.
func (m *Metrics) ObserveError(tag string) {
	m.errors.WithLabelValues(tag).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
