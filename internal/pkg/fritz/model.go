package fritz

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// ################################
// GetDeviceListInfos

type xmlDeviceList struct {
	XMLName xml.Name    `xml:"devicelist"`
	Devices []xmlDevice `xml:"device"`
	Groups  []xmlDevice `xml:"group"`
}

type xmlDevice struct {
	Identifier      string          `xml:"identifier,attr"`
	ID              string          `xml:"id,attr"`
	FunctionBitmask int             `xml:"functionbitmask,attr"`
	FwVersion       string          `xml:"fwversion,attr"`
	Manufacturer    string          `xml:"manufacturer,attr"`
	ProductName     string          `xml:"productname,attr"`
	Present         string          `xml:"present"`
	TxBusy          string          `xml:"txbusy"`
	Name            string          `xml:"name"`
	Battery         string          `xml:"battery"`
	BatteryLow      string          `xml:"batterylow"`
	Switch          *xmlSwitch      `xml:"switch"`
	PowerMeter      *xmlPowerMeter  `xml:"powermeter"`
	Temperature     *xmlTemperature `xml:"temperature"`
	Humidity        *xmlHumidity    `xml:"humidity"`
	HKR             *xmlHKR         `xml:"hkr"`
	Alert           *xmlAlert       `xml:"alert"`
}

type xmlSwitch struct {
	State      string `xml:"state"`
	Mode       string `xml:"mode"`
	Lock       string `xml:"lock"`
	DeviceLock string `xml:"devicelock"`
}

type xmlPowerMeter struct {
	Voltage string `xml:"voltage"` // mV
	Power   string `xml:"power"`   // mW
	Energy  string `xml:"energy"`  // Wh
}

type xmlTemperature struct {
	Celsius string `xml:"celsius"` // 0.1 °C
	Offset  string `xml:"offset"`  // 0.1 °C
}

type xmlHumidity struct {
	RelHumidity string `xml:"rel_humidity"`
}

// temperatures are in 0.5 °C steps, 253 off, 254 on.
type xmlHKR struct {
	Tist            string `xml:"tist"`
	Tsoll           string `xml:"tsoll"`
	Absenk          string `xml:"absenk"`
	Komfort         string `xml:"komfort"`
	Lock            string `xml:"lock"`
	DeviceLock      string `xml:"devicelock"`
	ErrorCode       string `xml:"errorcode"`
	BatteryLow      string `xml:"batterylow"`
	Battery         string `xml:"battery"`
	WindowOpenActiv string `xml:"windowopenactiv"`
	BoostActive     string `xml:"boostactive"`
	SummerActive    string `xml:"summeractive"`
	HolidayActive   string `xml:"holidayactive"`
}

type xmlAlert struct {
	State string `xml:"state"`
}

// ################################

// ################################
// GetTemplateListInfos

type xmlTemplateList struct {
	XMLName   xml.Name      `xml:"templatelist"`
	Templates []xmlTemplate `xml:"template"`
}

type xmlTemplate struct {
	Identifier      string `xml:"identifier,attr"`
	ID              string `xml:"id,attr"`
	FunctionBitmask int    `xml:"functionbitmask,attr"`
	ApplyMask       int    `xml:"applymask,attr"`
	Name            string `xml:"name"`
	Devices         struct {
		Device []struct {
			Identifier string `xml:"identifier,attr"`
		} `xml:"device"`
	} `xml:"devices"`
}

// ################################

// Device is one actor reported by the hub. Optional readings are nil when
// the hub did not report them.
type Device struct {
	AIN             string
	ID              string
	FunctionBitmask FunctionBit
	FwVersion       string
	Manufacturer    string
	ProductName     string
	Name            string
	Present         bool
	TxBusy          bool

	BatteryLevel *int
	BatteryLow   *bool

	SwitchState *bool
	SwitchMode  string
	Lock        *bool
	DeviceLock  *bool

	Power   *float64 // mW
	Voltage *float64 // mV
	Energy  *float64 // Wh

	Temperature *float64 // °C
	Offset      *float64 // °C
	RelHumidity *int

	ActualTemperature  *float64
	TargetTemperature  *float64
	EcoTemperature     *float64
	ComfortTemperature *float64
	WindowOpen         *bool
	BoostActive        *bool
	SummerActive       *bool
	HolidayActive      *bool
	ErrorCode          *int

	AlertState *bool
}

// Has reports whether the function bitmask carries bit.
func (d *Device) Has(bit FunctionBit) bool {
	return d.FunctionBitmask&bit != 0
}

func (d *Device) HasAlarm() bool             { return d.Has(FunctionAlarm) }
func (d *Device) HasButton() bool            { return d.Has(FunctionButton) }
func (d *Device) HasThermostat() bool        { return d.Has(FunctionThermostat) }
func (d *Device) HasPowerMeter() bool        { return d.Has(FunctionPowerMeter) }
func (d *Device) HasTemperatureSensor() bool { return d.Has(FunctionTemperature) }
func (d *Device) HasSwitch() bool            { return d.Has(FunctionSwitch) }
func (d *Device) HasHumiditySensor() bool    { return d.Has(FunctionHumidity) }
func (d *Device) HasLight() bool             { return d.Has(FunctionLight) }
func (d *Device) HasBlind() bool             { return d.Has(FunctionBlind) }
func (d *Device) IsHanFunUnit() bool         { return d.Has(FunctionHanFunUnit) }
func (d *Device) HasLock() bool              { return d.Lock != nil }

// DeviceAndUnitID splits the AIN of a sub unit ("<device>-<unit>"). unit is
// empty for main devices, templates and groups.
func (d *Device) DeviceAndUnitID() (device string, unit string) {
	return splitAIN(d.AIN)
}

func splitAIN(ain string) (string, string) {
	if strings.HasPrefix(ain, "tmp") || strings.HasPrefix(ain, "grp") {
		return ain, ""
	}
	if i := strings.LastIndex(ain, "-"); i >= 0 {
		return ain[:i], ain[i+1:]
	}
	return ain, ""
}

// Template is a hub side preset that can be applied at once.
type Template struct {
	AIN             string
	ID              string
	Name            string
	FunctionBitmask FunctionBit
	ApplyMask       int
	Devices         []string
}

// Data is one complete poll of the hub.
type Data struct {
	Devices   map[string]*Device
	Templates map[string]*Template
}

// Contains reports whether ain is a current device or template.
func (d *Data) Contains(ain string) bool {
	if d == nil {
		return false
	}
	if _, ok := d.Devices[ain]; ok {
		return true
	}
	_, ok := d.Templates[ain]
	return ok
}

func newDevice(x xmlDevice) *Device {
	d := &Device{
		AIN:             strings.TrimSpace(x.Identifier),
		ID:              x.ID,
		FunctionBitmask: FunctionBit(x.FunctionBitmask),
		FwVersion:       x.FwVersion,
		Manufacturer:    x.Manufacturer,
		ProductName:     x.ProductName,
		Name:            x.Name,
		Present:         x.Present == "1",
		TxBusy:          x.TxBusy == "1",
		BatteryLevel:    parseInt(x.Battery),
		BatteryLow:      parseBool(x.BatteryLow),
	}

	if x.Switch != nil {
		d.SwitchState = parseBool(x.Switch.State)
		d.SwitchMode = x.Switch.Mode
		d.Lock = parseBool(x.Switch.Lock)
		d.DeviceLock = parseBool(x.Switch.DeviceLock)
	}
	if x.PowerMeter != nil {
		d.Power = parseFloat(x.PowerMeter.Power)
		d.Voltage = parseFloat(x.PowerMeter.Voltage)
		d.Energy = parseFloat(x.PowerMeter.Energy)
	}
	if x.Temperature != nil {
		d.Temperature = scale(parseFloat(x.Temperature.Celsius), 10)
		d.Offset = scale(parseFloat(x.Temperature.Offset), 10)
	}
	if x.Humidity != nil {
		d.RelHumidity = parseInt(x.Humidity.RelHumidity)
	}
	if x.HKR != nil {
		d.ActualTemperature = hkrTemperature(x.HKR.Tist)
		d.TargetTemperature = hkrTemperature(x.HKR.Tsoll)
		d.EcoTemperature = hkrTemperature(x.HKR.Absenk)
		d.ComfortTemperature = hkrTemperature(x.HKR.Komfort)
		d.Lock = parseBool(x.HKR.Lock)
		d.DeviceLock = parseBool(x.HKR.DeviceLock)
		d.ErrorCode = parseInt(x.HKR.ErrorCode)
		d.WindowOpen = parseBool(x.HKR.WindowOpenActiv)
		d.BoostActive = parseBool(x.HKR.BoostActive)
		d.SummerActive = parseBool(x.HKR.SummerActive)
		d.HolidayActive = parseBool(x.HKR.HolidayActive)
		if v := parseInt(x.HKR.Battery); v != nil {
			d.BatteryLevel = v
		}
		if v := parseBool(x.HKR.BatteryLow); v != nil {
			d.BatteryLow = v
		}
	}
	if x.Alert != nil {
		d.AlertState = parseBool(x.Alert.State)
	}
	return d
}

func newTemplate(x xmlTemplate) *Template {
	t := &Template{
		AIN:             strings.TrimSpace(x.Identifier),
		ID:              x.ID,
		Name:            x.Name,
		FunctionBitmask: FunctionBit(x.FunctionBitmask),
		ApplyMask:       x.ApplyMask,
	}
	for _, d := range x.Devices.Device {
		t.Devices = append(t.Devices, d.Identifier)
	}
	return t
}

func hkrTemperature(raw string) *float64 {
	v := parseFloat(raw)
	if v == nil {
		return nil
	}
	switch *v {
	case 253:
		t := TemperatureOff
		return &t
	case 254:
		t := TemperatureOn
		return &t
	}
	return scale(v, 2)
}

func scale(v *float64, divisor float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v / divisor
	return &s
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(s string) *bool {
	switch strings.TrimSpace(s) {
	case "1":
		v := true
		return &v
	case "0":
		v := false
		return &v
	}
	return nil
}
