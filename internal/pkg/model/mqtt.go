package model

// EntityConfig describes an entity to the host transports.
type EntityConfig struct {
	EntityID       string
	UniqueID       string
	Platform       Platform
	Name           string
	DeviceClass    DeviceClass
	StateClass     StateClass
	EntityCategory EntityCategory
	Unit           string
	Commandable    bool
	Device         DeviceEntry
}

type RegisterDevice struct {
	Name             string     `json:"name"`
	Identifiers      []string   `json:"identifiers"`
	Connections      [][]string `json:"connections,omitempty"`
	Model            string     `json:"model,omitempty"`
	Manufacturer     string     `json:"manufacturer,omitempty"`
	SwVersion        string     `json:"sw_version,omitempty"`
	ConfigurationURL string     `json:"configuration_url,omitempty"`
}

// RegisterMessage is a Home Assistant MQTT discovery config payload.
type RegisterMessage struct {
	Tilda               string         `json:"~"`
	Name                *string        `json:"name"`
	ID                  string         `json:"unique_id"`
	ObjectID            string         `json:"object_id"`
	StateTopic          string         `json:"state_topic,omitempty"`
	ValueTemplate       string         `json:"value_template,omitempty"`
	JSONAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string         `json:"availability_topic"`
	CommandTopic        string         `json:"command_topic,omitempty"`
	DeviceClass         DeviceClass    `json:"device_class,omitempty"`
	StateClass          StateClass     `json:"state_class,omitempty"`
	EntityCategory      EntityCategory `json:"entity_category,omitempty"`
	Unit                string         `json:"unit_of_measurement,omitempty"`
	PayloadOn           string         `json:"payload_on,omitempty"`
	PayloadOff          string         `json:"payload_off,omitempty"`
	PayloadPress        string         `json:"payload_press,omitempty"`
	Device              RegisterDevice `json:"device"`

	// climate
	Modes                   []string `json:"modes,omitempty"`
	ModeStateTopic          string   `json:"mode_state_topic,omitempty"`
	ModeStateTemplate       string   `json:"mode_state_template,omitempty"`
	ModeCommandTopic        string   `json:"mode_command_topic,omitempty"`
	TemperatureStateTopic   string   `json:"temperature_state_topic,omitempty"`
	TemperatureStateTmpl    string   `json:"temperature_state_template,omitempty"`
	TemperatureCommandTopic string   `json:"temperature_command_topic,omitempty"`
	CurrentTemperatureTopic string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTmpl  string   `json:"current_temperature_template,omitempty"`
	MinTemp                 float64  `json:"min_temp,omitempty"`
	MaxTemp                 float64  `json:"max_temp,omitempty"`
	TempStep                float64  `json:"temp_step,omitempty"`
	TemperatureUnit         string   `json:"temperature_unit,omitempty"`
	PresetModes             []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic    string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeStateTemplate string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic  string   `json:"preset_mode_command_topic,omitempty"`
}
