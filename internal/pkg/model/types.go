package model

// Domain is the integration domain used in device identifiers and topics.
const Domain = "fritzbox"

// Platform is the host entity domain an entity belongs to.
type Platform string

func (p Platform) String() string {
	return string(p)
}

const (
	BinarySensor Platform = "binary_sensor"
	Button       Platform = "button"
	Climate      Platform = "climate"
	Sensor       Platform = "sensor"
	Switch       Platform = "switch"
)

// Platforms is the order platforms are forwarded in during setup.
var Platforms = []Platform{
	BinarySensor,
	Button,
	Climate,
	Sensor,
	Switch,
}

type NumericUnit string

const (
	NumericUnitAmp          NumericUnit = "A"
	NumericUnitPercent      NumericUnit = "%"
	NumericUnitWatt         NumericUnit = "W"
	NumericUnitKiloWattHour NumericUnit = "kWh"
	NumericUnitDegreeC      NumericUnit = "°C"
	NumericUnitVolt         NumericUnit = "V"
)

var NumericUnits = []NumericUnit{
	NumericUnitAmp,
	NumericUnitPercent,
	NumericUnitWatt,
	NumericUnitKiloWattHour,
	NumericUnitDegreeC,
	NumericUnitVolt,
}

type DeviceClass string

const (
	DeviceClassBattery     DeviceClass = "battery"
	DeviceClassCurrent     DeviceClass = "current"
	DeviceClassEnergy      DeviceClass = "energy"
	DeviceClassHumidity    DeviceClass = "humidity"
	DeviceClassLock        DeviceClass = "lock"
	DeviceClassOutlet      DeviceClass = "outlet"
	DeviceClassPower       DeviceClass = "power"
	DeviceClassTemperature DeviceClass = "temperature"
	DeviceClassVoltage     DeviceClass = "voltage"
	DeviceClassWindow      DeviceClass = "window"
)

type StateClass string

const (
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

type EntityCategory string

const (
	EntityCategoryConfig     EntityCategory = "config"
	EntityCategoryDiagnostic EntityCategory = "diagnostic"
)

type IssueSeverity string

const (
	IssueSeverityWarning IssueSeverity = "warning"
	IssueSeverityError   IssueSeverity = "error"
)

// Well known state payloads.
const (
	StateOn      = "ON"
	StateOff     = "OFF"
	StateUnknown = "unknown"
)
