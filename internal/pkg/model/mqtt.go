package model

// Home Assistant MQTT discovery payloads. The "~" field is the discovery
// topic prefix HA substitutes into the other topic fields.

type DiscoveryDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

type SwitchConfig struct {
	Tilda        string          `json:"~"`
	Name         string          `json:"name"`
	ID           string          `json:"unique_id"`
	StateTopic   string          `json:"state_topic"`
	CommandTopic string          `json:"command_topic"`
	PayloadOn    string          `json:"payload_on"`
	PayloadOff   string          `json:"payload_off"`
	Device       DiscoveryDevice `json:"device"`
}

type ButtonConfig struct {
	Tilda        string          `json:"~"`
	Name         string          `json:"name"`
	ID           string          `json:"unique_id"`
	CommandTopic string          `json:"command_topic"`
	PayloadPress string          `json:"payload_press"`
	Device       DiscoveryDevice `json:"device"`
}

type ImageConfig struct {
	Tilda       string          `json:"~"`
	Name        string          `json:"name"`
	ID          string          `json:"unique_id"`
	ImageTopic  string          `json:"image_topic"`
	ContentType string          `json:"content_type"`
	Device      DiscoveryDevice `json:"device"`
}
