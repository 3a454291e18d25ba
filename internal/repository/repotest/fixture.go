// Package repotest builds throwaway SQLite climate datasets for tests.
package repotest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"climate-api/internal/models"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// Schema mirrors the hawaii.sqlite layout
const Schema = `
CREATE TABLE measurement (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  station TEXT,
  date    TEXT,
  prcp    FLOAT,
  tobs    FLOAT
);
CREATE TABLE station (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  station   TEXT,
  name      TEXT,
  latitude  FLOAT,
  longitude FLOAT,
  elevation FLOAT
);
`

// F returns a pointer to v
func F(v float64) *float64 { return &v }

// WriteDataset creates a dataset file holding the given rows, inserted in
// slice order, and returns its path.
func WriteDataset(t testing.TB, stations []models.Station, measurements []models.Measurement) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hawaii.sqlite")
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer raw.Close()

	if _, err := raw.Exec(Schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}

	for _, s := range stations {
		_, err := raw.Exec(`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`,
			s.StationID, s.Name, s.Latitude, s.Longitude, s.Elevation)
		if err != nil {
			t.Fatalf("insert station %s: %v", s.StationID, err)
		}
	}

	for _, m := range measurements {
		_, err := raw.Exec(`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`,
			m.StationID, string(m.Date), m.Precipitation, m.TemperatureObservation)
		if err != nil {
			t.Fatalf("insert measurement %s/%s: %v", m.StationID, m.Date, err)
		}
	}

	return path
}

// Open opens path read-only and closes it when the test ends
func Open(t testing.TB, path string) *database.DB {
	t.Helper()

	db, err := database.Open(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         path,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, logging.Discard(), NewMetrics())
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// NewMetrics returns a collector on a private registry
func NewMetrics() *metrics.Collector {
	return metrics.NewCollectorWith("climate_test", prometheus.NewRegistry())
}

// Hawaii returns a small dataset shaped like the real one: three stations,
// the busiest being USC00519281, with data ending on 2017-08-23.
func Hawaii() ([]models.Station, []models.Measurement) {
	stations := []models.Station{
		{StationID: "USC00519397", Name: "WAIKIKI 717.2, HI US", Latitude: F(21.2716), Longitude: F(-157.8168), Elevation: F(3)},
		{StationID: "USC00519281", Name: "WAIHEE 837.5, HI US", Latitude: F(21.45167), Longitude: F(-157.84889), Elevation: F(32.9)},
		{StationID: "USC00513117", Name: "KANEOHE 838.1, HI US", Latitude: F(21.4234), Longitude: F(-157.8015), Elevation: F(14.6)},
	}

	measurements := []models.Measurement{
		{StationID: "USC00519397", Date: "2010-01-01", Precipitation: F(0.08), TemperatureObservation: F(65)},
		{StationID: "USC00519281", Date: "2016-08-22", Precipitation: F(1.79), TemperatureObservation: F(78)},
		{StationID: "USC00519281", Date: "2016-08-23", Precipitation: F(1.79), TemperatureObservation: F(77)},
		{StationID: "USC00519281", Date: "2017-01-15", Precipitation: nil, TemperatureObservation: F(70)},
		{StationID: "USC00519281", Date: "2017-08-18", Precipitation: F(0.06), TemperatureObservation: F(79)},
		{StationID: "USC00513117", Date: "2017-01-10", Precipitation: F(0.0), TemperatureObservation: F(60)},
		{StationID: "USC00513117", Date: "2017-01-20", Precipitation: F(0.02), TemperatureObservation: F(80)},
		{StationID: "USC00519397", Date: "2017-08-23", Precipitation: F(0.0), TemperatureObservation: F(81)},
		{StationID: "USC00519397", Date: "2017-08-23", Precipitation: F(0.45), TemperatureObservation: F(82)},
	}

	return stations, measurements
}
