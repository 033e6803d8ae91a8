package weather

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeLiveFile(t *testing.T, root, device string, st SensorType, date, content string) {
	t.Helper()
	dir := filepath.Join(root, device, string(st))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, date+".csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write live file: %v", err)
	}
}

func writeArchive(t *testing.T, root, device string, st SensorType, entries map[string]string) {
	t.Helper()
	dir := filepath.Join(root, device, string(st))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(filepath.Join(dir, ArchiveName))
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func TestGetReportFromLiveFile(t *testing.T) {
	root := t.TempDir()
	writeLiveFile(t, root, "dockan", Temperature, "2020-01-01",
		"2020-01-01T00:00:00;21.5\n2020-01-01T01:00:00;22.0\n")

	repo := NewRepository(root, nil)
	report, err := repo.GetReport("2020-01-01", "dockan", Temperature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Device.DeviceName != "dockan" {
		t.Fatalf("unexpected device: %+v", report.Device)
	}
	if !report.Device.Date.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", report.Device.Date)
	}
	if len(report.SensorTypes) != 1 || report.SensorTypes[0].Type != Temperature {
		t.Fatalf("expected one temperature series, got %+v", report.SensorTypes)
	}

	readings := report.SensorTypes[0].Readings
	if len(readings) != 2 || readings[0].Value != 21.5 || readings[1].Value != 22.0 {
		t.Fatalf("unexpected readings: %+v", readings)
	}
	if !readings[1].Time.Equal(time.Date(2020, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not preserved: %v", readings[1].Time)
	}
}

func TestGetReportFromArchive(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, "dockan", Humidity, map[string]string{
		"2019-12-30.csv": "2019-12-30T00:00:00;80\n",
		"2019-12-31.csv": "2019-12-31T00:00:00;81.5\n2019-12-31T12:00:00;79\n",
	})

	repo := NewRepository(root, nil)
	report, err := repo.GetReport("2019-12-31", "dockan", Humidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	readings := report.SensorTypes[0].Readings
	if len(readings) != 2 || readings[0].Value != 81.5 {
		t.Fatalf("unexpected readings: %+v", readings)
	}

	// An existing archive without the requested entry is not an error.
	_, err = repo.GetReport("2019-01-01", "dockan", Humidity)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLiveFileTakesPrecedenceOverArchive(t *testing.T) {
	root := t.TempDir()
	writeLiveFile(t, root, "dockan", Rainfall, "2020-02-02", "2020-02-02T00:00:00;1.0\n")
	writeArchive(t, root, "dockan", Rainfall, map[string]string{
		"2020-02-02.csv": "2020-02-02T00:00:00;99.0\n",
	})

	report, err := NewRepository(root, nil).GetReport("2020-02-02", "dockan", Rainfall)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.SensorTypes[0].Readings[0].Value; got != 1.0 {
		t.Fatalf("expected live file value 1.0, got %v", got)
	}
}

func TestGetReportNotFound(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)
	_, err := repo.GetReport("2020-01-01", "dockan", Temperature)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReportParseError(t *testing.T) {
	root := t.TempDir()
	writeLiveFile(t, root, "dockan", Temperature, "2020-01-01", "not-a-timestamp;21.5\n")

	_, err := NewRepository(root, nil).GetReport("2020-01-01", "dockan", Temperature)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestGetReportCorruptArchiveIsParseError(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dockan", string(Rainfall))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ArchiveName), []byte("definitely not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewRepository(root, nil).GetReport("2020-01-01", "dockan", Rainfall)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("corrupt archive must not be reported as not found")
	}
}

func TestGetReportNormalizesSensorType(t *testing.T) {
	root := t.TempDir()
	writeLiveFile(t, root, "dockan", Temperature, "2020-01-01", "2020-01-01T00:00:00;21.5\n")

	repo := NewRepository(root, nil)
	for _, raw := range []string{"Temperature", " TEMPERATURE "} {
		report, err := repo.GetReport("2020-01-01", "dockan", SensorType(raw))
		if err != nil {
			t.Fatalf("GetReport(%q): unexpected error: %v", raw, err)
		}
		if got := report.SensorTypes[0]; got.Type != Temperature || len(got.Readings) != 1 {
			t.Fatalf("GetReport(%q): unexpected series %+v", raw, got)
		}
	}
}

func TestGetReportRejectsInvalidInput(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil)

	cases := []struct {
		date, device string
		st           SensorType
		want         error
	}{
		{"2020-13-01", "dockan", Temperature, ErrInvalidQuery},
		{"../../etc", "dockan", Temperature, ErrInvalidQuery},
		{"2020-01-01", "../dockan", Temperature, ErrInvalidQuery},
		{"2020-01-01", "dockan", SensorType("wind"), ErrUnknownSensorType},
	}
	for _, tc := range cases {
		_, err := repo.GetReport(tc.date, tc.device, tc.st)
		if !errors.Is(err, tc.want) {
			t.Errorf("GetReport(%q, %q, %q): expected %v, got %v", tc.date, tc.device, tc.st, tc.want, err)
		}
	}
}

func TestGetDeviceReport(t *testing.T) {
	root := t.TempDir()
	writeLiveFile(t, root, "dockan", Temperature, "2020-01-01", "2020-01-01T00:00:00;21.5\n")
	writeArchive(t, root, "dockan", Rainfall, map[string]string{
		"2020-01-01.csv": "2020-01-01T00:00:00;0.2\n",
	})

	repo := NewRepository(root, nil)
	report, err := repo.GetDeviceReport("2020-01-01", "dockan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.SensorTypes) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(report.SensorTypes))
	}

	for i, st := range AllSensorTypes {
		slot := report.SensorTypes[i]
		if slot.Type != st {
			t.Fatalf("slot %d: expected %s, got %s", i, st, slot.Type)
		}

		single, err := repo.GetReport("2020-01-01", "dockan", st)
		if errors.Is(err, ErrNotFound) {
			if slot.Present() {
				t.Fatalf("slot %s should be absent", st)
			}
			continue
		}
		if err != nil {
			t.Fatalf("single query %s: %v", st, err)
		}
		if len(single.SensorTypes[0].Readings) != len(slot.Readings) {
			t.Fatalf("slot %s does not match single-type query", st)
		}
	}

	if report.SensorTypes[1].Present() {
		t.Fatal("humidity slot should be absent")
	}
}

func TestGetDeviceReportNotFound(t *testing.T) {
	root := t.TempDir()
	// An archive without the date must not count as data.
	writeArchive(t, root, "dockan", Temperature, map[string]string{"2000-01-01.csv": ""})

	_, err := NewRepository(root, nil).GetDeviceReport("2020-01-01", "dockan")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWeatherReportJSON(t *testing.T) {
	report := WeatherReport{
		Device: Device{DeviceName: "dockan", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		SensorTypes: []SensorSeries{
			{Type: Temperature, Readings: []Reading{{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 21.5}}},
			{Type: Humidity},
		},
	}

	b, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		`"deviceName":"dockan"`,
		`"sensorName":"temperature"`,
		`"degrees":21.5`,
		`"time":"2020-01-01T00:00:00Z"`,
		`"sensorName":"humidity","sensorList":null`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}
