package types

// Topic patterns. {deviceID} is the configured device ID.
const (
	TopicWateringState    = "growmat/{deviceID}/watering"
	TopicDeviceStatus     = "growmat/{deviceID}/status"
	TopicEnvironmentState = "growmat/{deviceID}/environment"
	TopicWateringControl  = "growmat/{deviceID}/control/watering"
	TopicConfigControl    = "growmat/{deviceID}/control/config"
)

// Operation IDs.
const (
	OpPublishWateringState    = "publishWateringState"
	OpPublishDeviceStatus     = "publishDeviceStatus"
	OpPublishEnvironmentState = "publishEnvironmentState"
	OpControlWatering         = "controlWatering"
	OpControlConfig           = "controlConfig"
)

// WateringAction is the action requested on the watering control topic.
type WateringAction string

const (
	ActionTrigger    WateringAction = "trigger"
	ActionToggleAuto WateringAction = "toggle_auto"
	ActionSetAuto    WateringAction = "set_auto"
	ActionResetTank  WateringAction = "reset_tank"
	ActionSetTank    WateringAction = "set_tank"
)

// WateringCommand is received on the watering control topic.
type WateringCommand struct {
	// Action to perform
	Action WateringAction `json:"action"`
	// Value for set_tank (millilitres) and set_auto (non-zero enables)
	Value *float64 `json:"value,omitempty"`
}

// ConfigCommand is received on the config control topic.
type ConfigCommand struct {
	// Setting key, e.g. moisture_threshold
	Key string `json:"key"`
	// New value in its text form, e.g. "35" or "15s"
	Value string `json:"value"`
}
