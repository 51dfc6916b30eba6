package model

import "time"

// Identifier is a (domain, id) pair identifying a device in the device registry.
type Identifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// Connection is a (type, id) pair linking a device to something outside the registry.
type Connection struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ConnectionAIN is the connection type used for hub actor numbers.
const ConnectionAIN = "ain"

// DeviceEntry is a device registry record.
type DeviceEntry struct {
	ID               string       `json:"id"`
	ConfigEntries    []string     `json:"config_entries"`
	Identifiers      []Identifier `json:"identifiers"`
	Connections      []Connection `json:"connections"`
	Name             string       `json:"name"`
	NameByUser       string       `json:"name_by_user,omitempty"`
	Manufacturer     string       `json:"manufacturer"`
	Model            string       `json:"model"`
	SwVersion        string       `json:"sw_version"`
	ConfigurationURL string       `json:"configuration_url"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DisplayName follows the precedence used when reporting a device to users.
func (d DeviceEntry) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

func (d DeviceEntry) HasIdentifier(id Identifier) bool {
	for _, i := range d.Identifiers {
		if i == id {
			return true
		}
	}
	return false
}

func (d DeviceEntry) HasConnection(c Connection) bool {
	for _, i := range d.Connections {
		if i == c {
			return true
		}
	}
	return false
}

// DeviceInfo is what an entity tells the registry about the device it belongs to.
type DeviceInfo struct {
	Identifiers      []Identifier
	Connections      []Connection
	Name             string
	Manufacturer     string
	Model            string
	SwVersion        string
	ConfigurationURL string
}

// EntityEntry is an entity registry record.
type EntityEntry struct {
	EntityID          string    `json:"entity_id"`
	UniqueID          string    `json:"unique_id"`
	Platform          Platform  `json:"platform"`
	ConfigEntryID     string    `json:"config_entry_id"`
	DeviceID          string    `json:"device_id,omitempty"`
	OriginalName      string    `json:"original_name"`
	UnitOfMeasurement string    `json:"unit_of_measurement,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Issue is a repair issue raised for the user.
type Issue struct {
	Domain                  string            `json:"domain"`
	IssueID                 string            `json:"issue_id"`
	Severity                IssueSeverity     `json:"severity"`
	IsFixable               bool              `json:"is_fixable"`
	IsPersistent            bool              `json:"is_persistent"`
	TranslationKey          string            `json:"translation_key"`
	TranslationPlaceholders map[string]string `json:"translation_placeholders"`
	CreatedAt               time.Time         `json:"created_at"`
}

// EntityState is the state of one entity after a poll.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	UniqueID   string         `json:"unique_id"`
	Platform   Platform       `json:"platform"`
	State      string         `json:"state"`
	Unit       string         `json:"unit_of_measurement,omitempty"`
	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes,omitempty"`
	TimeStamp  time.Time      `json:"timestamp"`
}
