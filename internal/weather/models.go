package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of the date component in cache file names.
const DateLayout = "2006-01-02"

// SensorType is the closed set of measured quantities.
// The value doubles as the remote and local directory name.
type SensorType string

const (
	Temperature SensorType = "temperature"
	Humidity    SensorType = "humidity"
	Rainfall    SensorType = "rainfall"
)

// AllSensorTypes lists every sensor type in report order.
var AllSensorTypes = []SensorType{Temperature, Humidity, Rainfall}

// ParseSensorType maps a directory or request name onto a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	switch t := SensorType(strings.ToLower(strings.TrimSpace(s))); t {
	case Temperature, Humidity, Rainfall:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSensorType, s)
	}
}

// valueField is the JSON name of the scalar carried by a reading of this type.
func (t SensorType) valueField() string {
	switch t {
	case Temperature:
		return "degrees"
	case Humidity:
		return "humidityAmount"
	default:
		return "rainAmount"
	}
}

// Device identifies the station and the calendar date a report concerns.
type Device struct {
	DeviceName string    `json:"deviceName"`
	Date       time.Time `json:"date"`
}

// Reading is one measurement. The unit of Value depends on the series' SensorType.
type Reading struct {
	Time  time.Time
	Value float64
}

// SensorSeries holds the readings of one sensor type in file line order.
// A nil Readings slice means no data exists for the requested date.
type SensorSeries struct {
	Type     SensorType
	Readings []Reading
}

// Present reports whether the series was backed by a cache file.
func (s SensorSeries) Present() bool {
	return s.Readings != nil
}

// MarshalJSON labels each reading's value by sensor type, e.g. {"time":..., "degrees":21.5}.
func (s SensorSeries) MarshalJSON() ([]byte, error) {
	var list []map[string]any
	if s.Readings != nil {
		list = make([]map[string]any, 0, len(s.Readings))
		field := s.Type.valueField()
		for _, r := range s.Readings {
			list = append(list, map[string]any{
				"time": r.Time,
				field:  r.Value,
			})
		}
	}

	return json.Marshal(struct {
		SensorName SensorType       `json:"sensorName"`
		SensorList []map[string]any `json:"sensorList"`
	}{
		SensorName: s.Type,
		SensorList: list,
	})
}

// WeatherReport is the result of a query: one series for a single-type query,
// three fixed-order slots for an all-types query.
type WeatherReport struct {
	Device      Device         `json:"device"`
	SensorTypes []SensorSeries `json:"sensorTypes"`
}
