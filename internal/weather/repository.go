package weather

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Repository answers report queries from the local mirror. It only reads the
// cache tree; every query goes back to disk.
//
// Layout: <root>/<device>/<sensorType>/<date>.csv and
// <root>/<device>/<sensorType>/historical.zip.
type Repository struct {
	root   string
	loc    *time.Location
	parser *Parser
}

// NewRepository creates a Repository rooted at the mirror directory.
// Dates and zone-less timestamps are interpreted in loc (UTC when nil).
func NewRepository(root string, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{
		root:   root,
		loc:    loc,
		parser: NewParser(loc),
	}
}

// GetReport returns the readings of one sensor type for a device and date.
func (r *Repository) GetReport(date, device string, sensorType SensorType) (WeatherReport, error) {
	d, err := r.device(date, device)
	if err != nil {
		return WeatherReport{}, err
	}
	sensorType, err = ParseSensorType(string(sensorType))
	if err != nil {
		return WeatherReport{}, err
	}

	readings, err := r.loadSeries(date, device, sensorType)
	if err != nil {
		return WeatherReport{}, err
	}

	return WeatherReport{
		Device:      d,
		SensorTypes: []SensorSeries{{Type: sensorType, Readings: readings}},
	}, nil
}

// GetDeviceReport resolves temperature, humidity and rainfall independently.
// It returns ErrNotFound only when all three are absent; otherwise the report
// has three slots in that order, absent ones carrying nil readings.
func (r *Repository) GetDeviceReport(date, device string) (WeatherReport, error) {
	d, err := r.device(date, device)
	if err != nil {
		return WeatherReport{}, err
	}

	series := make([]SensorSeries, 0, len(AllSensorTypes))
	found := 0
	for _, t := range AllSensorTypes {
		readings, err := r.loadSeries(date, device, t)
		switch {
		case err == nil:
			found++
		case errors.Is(err, ErrNotFound):
			readings = nil
		default:
			return WeatherReport{}, err
		}
		series = append(series, SensorSeries{Type: t, Readings: readings})
	}

	if found == 0 {
		return WeatherReport{}, ErrNotFound
	}

	return WeatherReport{Device: d, SensorTypes: series}, nil
}

// loadSeries prefers the live daily file over the archive entry for the same
// date. No version comparison is made between the two.
func (r *Repository) loadSeries(date, device string, sensorType SensorType) ([]Reading, error) {
	dir := filepath.Join(r.root, device, string(sensorType))
	livePath := filepath.Join(dir, date+".csv")

	// Open directly instead of stat-then-open so a concurrent rename-over
	// cannot slip between the existence check and the read.
	f, err := os.Open(livePath)
	if err == nil {
		defer f.Close()
		readings, err := r.parser.Parse(f, filepath.Base(livePath))
		if err != nil {
			return nil, err
		}
		log.Debug().Str("path", livePath).Int("readings", len(readings)).Msg("weather: served from live file")
		return readings, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", livePath, err)
	}

	readings, err := ReadArchiveEntry(filepath.Join(dir, ArchiveName), date, r.parser)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("device", device).Str("sensor", string(sensorType)).Str("date", date).
		Int("readings", len(readings)).Msg("weather: served from archive")
	return readings, nil
}

// device validates the query inputs before they are used to build paths.
func (r *Repository) device(date, device string) (Device, error) {
	day, err := time.ParseInLocation(DateLayout, date, r.loc)
	if err != nil {
		return Device{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidQuery, date)
	}
	if !ValidDeviceName(device) {
		return Device{}, fmt.Errorf("%w: device %q", ErrInvalidQuery, device)
	}
	return Device{DeviceName: device, Date: day}, nil
}

// ValidDeviceName reports whether name is safe to use as a single path segment.
func ValidDeviceName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
