package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-station-api/internal/weather"
)

// DevicesFile is the layout of the optional DEVICES_FILE.
type DevicesFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadDevicesFromYAML reads tracked devices from a YAML file. A device
// without sensorTypes tracks all of them.
func LoadDevicesFromYAML(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file: %w", err)
	}

	var file DevicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Devices) == 0 {
		return nil, fmt.Errorf("devices file %s lists no devices", path)
	}

	for i := range file.Devices {
		d := &file.Devices[i]
		if !weather.ValidDeviceName(d.Name) {
			return nil, fmt.Errorf("device at index %d has invalid name %q", i, d.Name)
		}
		if len(d.SensorTypes) == 0 {
			d.SensorTypes = append([]weather.SensorType(nil), weather.AllSensorTypes...)
			continue
		}
		for j, t := range d.SensorTypes {
			parsed, err := weather.ParseSensorType(string(t))
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", d.Name, err)
			}
			d.SensorTypes[j] = parsed
		}
	}

	return file.Devices, nil
}
