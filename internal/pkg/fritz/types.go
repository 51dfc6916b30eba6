package fritz

// Command is an AHA "switchcmd" understood by homeautoswitch.lua.
type Command string

func (c Command) String() string {
	return string(c)
}

const (
	GetDeviceListInfos   Command = "getdevicelistinfos"
	GetTemplateListInfos Command = "gettemplatelistinfos"
	SetSwitchOn          Command = "setswitchon"
	SetSwitchOff         Command = "setswitchoff"
	SetHkrTsoll          Command = "sethkrtsoll"
	ApplyTemplate        Command = "applytemplate"
)

// FunctionBit is a single bit of a device's functionbitmask attribute.
type FunctionBit int

const (
	FunctionHanFunDevice FunctionBit = 1 << 0
	FunctionLight        FunctionBit = 1 << 2
	FunctionAlarm        FunctionBit = 1 << 4
	FunctionButton       FunctionBit = 1 << 5
	FunctionThermostat   FunctionBit = 1 << 6
	FunctionPowerMeter   FunctionBit = 1 << 7
	FunctionTemperature  FunctionBit = 1 << 8
	FunctionSwitch       FunctionBit = 1 << 9
	FunctionRepeater     FunctionBit = 1 << 10
	FunctionMicrophone   FunctionBit = 1 << 11
	FunctionHanFunUnit   FunctionBit = 1 << 13
	FunctionSwitchable   FunctionBit = 1 << 15
	FunctionLevel        FunctionBit = 1 << 16
	FunctionColor        FunctionBit = 1 << 17
	FunctionBlind        FunctionBit = 1 << 18
	FunctionHumidity     FunctionBit = 1 << 20
)

// Thermostat set points encoded by the hub as 253 (off) and 254 (on).
const (
	TemperatureOff float64 = 126.5
	TemperatureOn  float64 = 127.0

	minTargetTemperature float64 = 8
	maxTargetTemperature float64 = 28
)

const (
	emptySID  = "0000000000000000"
	loginPath = "/login_sid.lua"
	ahaPath   = "/webservices/homeautoswitch.lua"
)
