package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"growmat/backend/internal/config"
	"growmat/backend/internal/environment"
	"growmat/backend/internal/hardware"
	localapi "growmat/backend/internal/local/api"
	mqttapi "growmat/backend/internal/local/mqtt"
	mqtttypes "growmat/backend/internal/local/mqtt/types"
	localservices "growmat/backend/internal/local/services"
	"growmat/backend/internal/metrics"
	sharedapi "growmat/backend/internal/shared/api"
	sharedtypes "growmat/backend/internal/shared/types"
	"growmat/backend/internal/store"
	"growmat/backend/internal/supervisor"
	"growmat/backend/internal/watering"
	"growmat/backend/pkg/migrator"
	"growmat/backend/pkg/mqtt"
	"growmat/backend/pkg/router"
	"growmat/backend/pkg/utils"
)

const startupTimeout = 30 * time.Second

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	config, err := config.New()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := config.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	logger := getLogger(config)
	logger.Info("starting growmat", slog.String("deviceID", config.DeviceID), slog.String("build", utils.GetBuildVersion()))

	if err := runMigrations(logger, config); err != nil {
		fatalIfErr(logger, fmt.Errorf("failed to run migrations: %w", err))
	}

	startCtx, startCancel := context.WithTimeout(sigCtx, startupTimeout)
	defer startCancel()

	st, err := store.Open(startCtx, logger, config.Dialect, config.Database)
	fatalIfErr(logger, err)

	defer utils.LogOnError(logger, st.Close, "failed to close store")

	// Metrics and supervisor
	m := metrics.New()
	sup := supervisor.New(logger, supervisor.Options{OnError: m.ObserveError})

	// Watering controller on simulated hardware
	soil := hardware.NewSimulatedSoil(logger, hardware.DefaultSoilOptions(
		config.Watering.Calibration.DryRaw, config.Watering.Calibration.WetRaw))
	pump := hardware.NewSimulatedPump(logger, soil)

	ctrl, err := watering.NewController(logger, watering.Options{
		Source:     soil,
		Pump:       pump,
		Tank:       watering.NewTank(config.Watering.TankCapacity),
		Settings:   config.Watering,
		Supervisor: sup,
	})
	fatalIfErr(logger, err)

	// Climate sensors on simulated hardware
	climate, err := environment.NewMonitor(logger, environment.Options{
		Source: hardware.NewSimulatedEnvironment(logger, hardware.DefaultEnvironmentOptions()),
		Calibration: environment.Calibration{
			TemperatureOffset: config.TemperatureOffset,
			AltitudeM:         config.AltitudeM,
		},
		Supervisor: sup,
	})
	fatalIfErr(logger, err)

	// MQTT
	var mqttBroker *mqttbroker.Server

	if config.MQTTEmbeddedBroker {
		mqttAddr := fmt.Sprintf(":%d", config.MQTTBrokerPort)
		mqttBroker, err = getMQTTServer(logger, mqttAddr)
		fatalIfErr(logger, err)

		go func() {
			logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

			if err := mqttBroker.Serve(); err != nil {
				logger.Error("MQTT broker failed", utils.ErrAttr(err))
				sigCancel()
			}
		}()
	}

	// The client is created before the services so that they can publish through it; the
	// connect hook is bound once the telemetry service exists.
	var onConnect func()

	mb, err := mqtt.NewMQTTBuilder(logger, mqtt.MQTTClientOptions{
		BrokerURL:   config.MQTTBroker,
		ClientID:    config.MQTTClientID,
		Username:    config.MQTTUsername,
		Password:    config.MQTTPassword,
		WillTopic:   mustExpandTopic(logger, mqtttypes.TopicDeviceStatus, config.DeviceID),
		WillPayload: offlinePayload(logger, config.DeviceID),
		OnConnect: func() {
			if onConnect != nil {
				onConnect()
			}
		},
	})
	fatalIfErr(logger, err)

	// Services
	services := localservices.NewServices(logger, localservices.Options{
		DeviceID:          config.DeviceID,
		Controller:        ctrl,
		Store:             st,
		Publisher:         mb.Client(),
		Supervisor:        sup,
		Observer:          m,
		Environment:       climate,
		TelemetryInterval: config.TelemetryInterval,
		Version:           utils.GetVersionShort(),
	})
	onConnect = services.Telemetry.Notify

	fatalIfErr(logger, services.Watering.Restore(startCtx))

	mqttHandler := mqttapi.NewMQTTHandler(logger, config.DeviceID, services.Watering)
	registerMQTTHandlers(logger, mb, mqttHandler)

	// HTTP
	rb := router.NewRouteBuilder(logger)
	apiHandler := localapi.NewHandler(logger, localapi.Options{
		DeviceID:    config.DeviceID,
		Core:        services.Core,
		Watering:    services.Watering,
		Environment: services.Environment,
		Operations:  mb.Operations,
		Metrics:     m.Handler(),
	})
	registerHTTPHandlers(logger, rb, apiHandler)

	// Connect blocks until the broker is reachable; watering must not wait for it.
	go func() {
		if err := mb.Connect(); err != nil {
			logger.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	servicesDone := make(chan struct{})

	go func() {
		defer close(servicesDone)
		services.Run(sigCtx)
	}()

	httpServer := sharedapi.NewHTTPServer(logger, fmt.Sprintf(":%d", config.Port), rb.Handler())
	httpServer.StartOnBackground(sigCancel)

	// Wait for signal (either OS or some failure)
	<-sigCtx.Done()
	logger.Info("received signal, shutting down...")

	logger.Info("http server shutting down...")

	if err := httpServer.ShutdownWithDefaultTimeout(); err != nil {
		logger.Error("http server shutdown failed", utils.ErrAttr(err))
	}

	logger.Info("waiting for watering to stop...")
	<-servicesDone

	if pump.IsOn() {
		logger.Error("pump still on after shutdown, forcing off")
		utils.LogOnError(logger, func() error { return pump.Off(context.Background()) }, "failed to switch pump off")
	}

	logger.Info("disconnecting from MQTT broker...")
	mb.Disconnect()

	if mqttBroker != nil {
		logger.Info("mqtt broker shutting down...")

		if err := mqttBroker.Close(); err != nil {
			logger.Error("mqtt broker shutdown failed", utils.ErrAttr(err))
		}
	}

	logger.Info("growmat exited gracefully")
}

func getMQTTServer(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})

	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	return server, nil
}

// registerHTTPHandlers registers all HTTP handlers.
func registerHTTPHandlers(l *slog.Logger, rb *router.RouteBuilder, h *localapi.Handler) {
	l.Info("Registering HTTP handlers...")

	mw := sharedapi.NewMiddlewareHandler(l)

	rb.Use(mw.RequestIDMiddleware)
	rb.Use(mw.LoggerMiddleware)
	rb.Use(mw.RecoveryMiddleware)

	h.Register(rb)

	l.Info("HTTP handlers registered successfully", slog.Int("routes", len(rb.Routes())))
}

// registerMQTTHandlers registers all MQTT handlers.
func registerMQTTHandlers(l *slog.Logger, mb *mqtt.MQTTBuilder, h *mqttapi.Handler) {
	l.Info("Registering MQTT handlers...")
	h.Register(mb)
	l.Info("MQTT handlers registered successfully", slog.Int("operations", len(mb.Operations())))
}

func mustExpandTopic(l *slog.Logger, pattern, deviceID string) string {
	topic, err := mqtt.ExpandTopic(pattern, map[string]string{"deviceID": deviceID})
	fatalIfErr(l, err)

	return topic
}

func offlinePayload(l *slog.Logger, deviceID string) string {
	payload, err := utils.ToJSON(sharedtypes.DeviceStatus{
		DeviceID: deviceID,
		Status:   sharedtypes.StatusOffline,
		Version:  utils.GetVersionShort(),
	})
	fatalIfErr(l, err)

	return string(payload)
}

func getLogger(config *config.Config) *slog.Logger {
	logOptions := slog.HandlerOptions{
		Level:       config.LogLevel,
		ReplaceAttr: utils.SlogReplacer,
	}

	return slog.New(slog.NewJSONHandler(config.LogOutput, &logOptions)).
		With(slog.String("version", utils.GetVersionShort()))
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}

func runMigrations(l *slog.Logger, c *config.Config) error {
	l.Info("Running database migrations")

	mig, err := migrator.New(l, c.Dialect, c.Database, c.Dialect.MigrationFS())
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := mig.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	status, err := mig.Status()
	if err != nil {
		return err
	}

	for _, s := range status {
		l.Debug("migration", slog.String("version", s.Version), slog.Bool("applied", s.Applied))
	}

	l.Info("Database migrations completed successfully", slog.Int("migrations", len(status)))

	return nil
}
