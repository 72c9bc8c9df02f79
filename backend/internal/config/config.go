package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"growmat/backend/internal/watering"
	"growmat/backend/pkg/dialect"
)

type EnvKey string

const (
	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvDBDialect EnvKey = "DB_DIALECT"
	EnvDBHost    EnvKey = "DB_HOST"
	EnvDBPort    EnvKey = "DB_PORT"
	EnvDBName    EnvKey = "DB_NAME"
	EnvDBUser    EnvKey = "DB_USER"
	EnvDBPass    EnvKey = "DB_PASSWORD"
	EnvDBSSLMode EnvKey = "DB_SSLMODE"

	EnvMQTTEmbeddedBroker EnvKey = "MQTT_EMBEDDED_BROKER"
	EnvMQTTBrokerPort     EnvKey = "MQTT_SERVER_PORT"

	EnvMQTTBroker   EnvKey = "MQTT_BROKER"
	EnvMQTTClientID EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword EnvKey = "MQTT_PASSWORD"

	EnvDeviceID          EnvKey = "DEVICE_ID"
	EnvTelemetryInterval EnvKey = "TELEMETRY_INTERVAL"
	EnvWateringConfig    EnvKey = "WATERING_CONFIG"

	EnvTemperatureOffset EnvKey = "TEMPERATURE_OFFSET"
	EnvAltitude          EnvKey = "ALTITUDE"
)

type Config struct {
	Port      int
	DataDir   string
	Database  string
	Dialect   dialect.Dialect
	LogLevel  slog.Leveler
	LogOutput io.Writer

	// Embedded MQTT broker configuration
	MQTTEmbeddedBroker bool
	MQTTBrokerPort     int

	// MQTT client configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	DeviceID          string
	TelemetryInterval time.Duration

	// WateringConfigPath is the optional YAML file the watering settings were loaded from.
	WateringConfigPath string
	Watering           watering.Settings

	// Climate sensor calibration
	TemperatureOffset float64
	AltitudeM         float64
}

func New() (*Config, error) {
	dataDir := getStringEnv(EnvDataDir, "data")

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbDialect := dialect.Dialect(getStringEnv(EnvDBDialect, string(dialect.SQLite)))
	if err := dbDialect.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database dialect: %w", err)
	}

	dbConnString, err := connectionString(dbDialect, dataDir)
	if err != nil {
		return nil, err
	}

	wateringPath := getStringEnv(EnvWateringConfig, "")

	settings, err := LoadWateringSettings(wateringPath)
	if err != nil {
		return nil, err
	}

	deviceID := getStringEnv(EnvDeviceID, "growmat-1")
	if deviceID == "" || strings.ContainsAny(deviceID, "/+#") {
		return nil, fmt.Errorf("invalid %s %q: must be non-empty and free of MQTT separators", EnvDeviceID, deviceID)
	}

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		f, err := os.OpenFile(filepath.Join(dataDir, "growmat.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	return &Config{
		Port:               getIntEnv(EnvPort, 8080),
		DataDir:            dataDir,
		Database:           dbConnString,
		Dialect:            dbDialect,
		LogLevel:           getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogOutput:          logOutput,
		MQTTEmbeddedBroker: getBoolEnv(EnvMQTTEmbeddedBroker, true),
		MQTTBrokerPort:     getIntEnv(EnvMQTTBrokerPort, 1883),
		MQTTBroker:         getStringEnv(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		MQTTClientID:       getStringEnv(EnvMQTTClientID, "growmat-"+deviceID),
		MQTTUsername:       getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:       getStringEnv(EnvMQTTPassword, ""),
		DeviceID:           deviceID,
		TelemetryInterval:  getDurationEnv(EnvTelemetryInterval, time.Minute),
		WateringConfigPath: wateringPath,
		Watering:           settings,
		TemperatureOffset:  getFloatEnv(EnvTemperatureOffset, 0),
		AltitudeM:          getFloatEnv(EnvAltitude, 0),
	}, nil
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

func connectionString(d dialect.Dialect, dataDir string) (string, error) {
	switch d {
	case dialect.SQLite:
		return filepath.Join(dataDir, "growmat.sqlite"), nil
	case dialect.PostgreSQL:
		host := getStringEnv(EnvDBHost, "localhost")
		port := getIntEnv(EnvDBPort, 5432)
		dbName := getStringEnv(EnvDBName, "growmat")
		user := getStringEnv(EnvDBUser, "growmat")
		password := getStringEnv(EnvDBPass, "")
		sslmode := getStringEnv(EnvDBSSLMode, "disable")

		return fmt.Sprintf(
			"postgresql://%s:%s@%s/%s?sslmode=%s",
			url.QueryEscape(user),
			url.QueryEscape(password),
			net.JoinHostPort(host, strconv.Itoa(port)),
			dbName, sslmode,
		), nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s", d)
	}
}

// LoadWateringSettings returns the default watering settings overlaid with the YAML file at path.
// An empty path yields the defaults. Unknown keys are rejected.
func LoadWateringSettings(path string) (watering.Settings, error) {
	settings := watering.DefaultSettings()

	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read watering config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return settings, fmt.Errorf("failed to parse watering config %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid watering config %s: %w", path, err)
	}

	return settings, nil
}

func getStringEnv(key EnvKey, defaultVal string) string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	return val
}

func getBoolEnv(key EnvKey, defaultVal bool) bool {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getIntEnv(key EnvKey, defaultVal int) int {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

func getFloatEnv(key EnvKey, defaultVal float64) float64 {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if f, err := strconv.ParseFloat(val, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}

	return defaultVal
}

func getDurationEnv(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}

	return defaultVal
}

func getLogLevelEnv(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}
