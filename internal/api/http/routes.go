package httpapi

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-station-api/internal/mirror"
	"github.com/i474232898/weather-station-api/internal/store"
	"github.com/i474232898/weather-station-api/internal/weather"
)

var validate = validator.New()

// ReportService answers the two report query shapes.
type ReportService interface {
	GetReport(date, device string, sensorType weather.SensorType) (weather.WeatherReport, error)
	GetDeviceReport(date, device string) (weather.WeatherReport, error)
}

// StatusSource exposes recorded sync outcomes.
type StatusSource interface {
	All() []store.FileStatus
	Failing() []store.FileStatus
	Get(key string) (store.FileStatus, error)
}

// CycleSource exposes the most recent refresh cycle. It may be nil.
type CycleSource interface {
	LastCycle() (mirror.CycleReport, bool)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reports ReportService, status StatusSource, cycles CycleSource) {
	v1 := app.Group("/api/v1")

	v1.Get("/weatherreports/getdata/:date/:deviceName/:sensorType", func(c *fiber.Ctx) error {
		q := sensorQuery{
			reportQuery: reportQuery{Date: c.Params("date"), DeviceName: c.Params("deviceName")},
			SensorType:  c.Params("sensorType"),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := reports.GetReport(q.Date, q.DeviceName, weather.SensorType(q.SensorType))
		if err != nil {
			return reportError(err, "No record found...")
		}

		return c.JSON(report)
	})

	v1.Get("/weatherreports/getdatafordevice", func(c *fiber.Ctx) error {
		q := reportQuery{Date: c.Query("date"), DeviceName: c.Query("deviceName")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := reports.GetDeviceReport(q.Date, q.DeviceName)
		if err != nil {
			return reportError(err, "No records found...")
		}

		return c.JSON(report)
	})

	v1.Get("/sync/status", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"files":   status.All(),
			"failing": status.Failing(),
		}
		if cycles != nil {
			if last, ok := cycles.LastCycle(); ok {
				body["lastCycle"] = last
			}
		}
		return c.JSON(body)
	})

	// Per-key outcome; the key is the remote object key, e.g.
	// /api/v1/sync/status/dockan/temperature/2020-01-01.csv
	v1.Get("/sync/status/*", func(c *fiber.Ctx) error {
		key, err := url.PathUnescape(c.Params("*"))
		if err != nil || key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "invalid key")
		}

		st, err := status.Get(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no sync status for key")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch sync status")
		}
		return c.JSON(st)
	})
}

// reportQuery holds the parameters shared by both report endpoints.
type reportQuery struct {
	Date       string `validate:"required,datetime=2006-01-02"`
	DeviceName string `validate:"required,max=128,excludesall=/\\"`
}

// sensorQuery adds the sensor type for the single-type endpoint.
type sensorQuery struct {
	reportQuery
	SensorType string `validate:"required,oneof=temperature humidity rainfall"`
}

// reportError maps query failures onto HTTP errors. Corrupt cache data is a
// server-side failure, distinct from missing data.
func reportError(err error, notFound string) error {
	var parseErr *weather.ParseError
	switch {
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFound)
	case errors.Is(err, weather.ErrInvalidQuery), errors.Is(err, weather.ErrUnknownSensorType):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &parseErr):
		log.Error().Err(err).Msg("api: cache file failed to parse")
		return fiber.NewError(fiber.StatusInternalServerError, "stored data is corrupt")
	default:
		log.Error().Err(err).Msg("api: report query failed")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}
