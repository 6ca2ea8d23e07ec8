package sensors

import "github.com/itsatony/etbridge/internal/models"

const (
	StateClassTotalIncreasing = "total_increasing"

	DeviceClassEnergy    = "energy"
	DeviceClassGas       = "gas"
	DeviceClassWater     = "water"
	DeviceClassTimestamp = "timestamp"
)

// MeterClass is what Home Assistant needs to know about a meter's readings
type MeterClass struct {
	DeviceClass string
	Unit        string
	StateClass  string
	Icon        string
}

var meterClasses = map[models.MeterType]MeterClass{
	models.MeterElectricity: {DeviceClass: DeviceClassEnergy, Unit: "kWh", StateClass: StateClassTotalIncreasing, Icon: "mdi:flash"},
	models.MeterGas:         {DeviceClass: DeviceClassGas, Unit: "m³", StateClass: StateClassTotalIncreasing, Icon: "mdi:fire"},
	models.MeterWater:       {DeviceClass: DeviceClassWater, Unit: "m³", StateClass: StateClassTotalIncreasing, Icon: "mdi:water"},
	models.MeterOther:       {StateClass: StateClassTotalIncreasing, Icon: "mdi:counter"},
}

// ClassFor returns the sensor class of a meter type; unknown types map like "other"
func ClassFor(t models.MeterType) MeterClass {
	if c, ok := meterClasses[t]; ok {
		return c
	}
	return meterClasses[models.MeterOther]
}
