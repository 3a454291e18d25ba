package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"climate-api/internal/models"
	"climate-api/pkg/database"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// ErrEmptyDataset is returned when a query needs at least one measurement
var ErrEmptyDataset = errors.New("dataset contains no measurements")

// RequiredSchema lists the tables and columns the queries below read
var RequiredSchema = []database.TableRequirement{
	{Name: "measurement", Columns: []string{"station", "date", "prcp", "tobs"}},
	{Name: "station", Columns: []string{"station", "name"}},
}

// ClimateRepository provides read-only access to the climate dataset
type ClimateRepository interface {
	// View runs fn inside one read-only session that is released when fn returns
	View(ctx context.Context, fn func(q ClimateQueries) error) error

	HealthCheck(ctx context.Context) error
}

// ClimateQueries are the queries available inside a session
type ClimateQueries interface {
	LastMeasurementDate(ctx context.Context) (models.Date, error)
	PrecipitationSince(ctx context.Context, cutoff models.Date) ([]models.PrecipitationReading, error)
	ListStations(ctx context.Context) ([]models.StationSummary, error)
	StationActivity(ctx context.Context) ([]models.StationActivity, error)
	MostActiveStation(ctx context.Context) (*models.StationActivity, error)
	TemperatureObservations(ctx context.Context, stationID string, since models.Date) ([]models.TemperatureObservation, error)
	TemperatureStats(ctx context.Context, r models.DateRange) (*models.TemperatureStats, error)
}

// climateRepository implements ClimateRepository
type climateRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateRepository creates a new climate repository
func NewClimateRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ClimateRepository {
	return &climateRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *climateRepository) View(ctx context.Context, fn func(q ClimateQueries) error) error {
	session, err := r.db.BeginSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.metrics.RecordDBError("session_close_error")
			r.logger.Error(ctx, "[REPO_SESSION_CLOSE_ERROR] Failed to release session", logging.Fields{}, err)
		}
	}()

	return fn(&climateQueries{session: session})
}

// HealthCheck performs a repository health check
func (r *climateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type climateQueries struct {
	session *database.Session
}

// LastMeasurementDate returns the greatest measurement date
func (q *climateQueries) LastMeasurementDate(ctx context.Context) (models.Date, error) {
	var last models.Date
	err := q.session.GetContext(ctx, "last_measurement_date", &last, `SELECT MAX(date) FROM measurement`)
	if err != nil {
		return "", fmt.Errorf("failed to get last measurement date: %w", err)
	}

	if last == "" {
		return "", ErrEmptyDataset
	}

	return last, nil
}

// PrecipitationSince returns every (date, prcp) with date >= cutoff in table order
func (q *climateQueries) PrecipitationSince(ctx context.Context, cutoff models.Date) ([]models.PrecipitationReading, error) {
	query := `
		SELECT date, prcp
		FROM measurement
		WHERE date >= ?
	`

	var readings []models.PrecipitationReading
	if err := q.session.SelectContext(ctx, "precipitation_since", &readings, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to get precipitation: %w", err)
	}

	return readings, nil
}

// ListStations returns every station in table order
func (q *climateQueries) ListStations(ctx context.Context) ([]models.StationSummary, error) {
	var stations []models.StationSummary
	if err := q.session.SelectContext(ctx, "list_stations", &stations, `SELECT station, name FROM station`); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	return stations, nil
}

// StationActivity returns measurement counts per station, busiest first.
// Equal counts are ordered by station id.
func (q *climateQueries) StationActivity(ctx context.Context) ([]models.StationActivity, error) {
	query := `
		SELECT station, COUNT(*) AS measurement_count
		FROM measurement
		GROUP BY station
		ORDER BY measurement_count DESC, station ASC
	`

	var activity []models.StationActivity
	if err := q.session.SelectContext(ctx, "station_activity", &activity, query); err != nil {
		return nil, fmt.Errorf("failed to get station activity: %w", err)
	}

	return activity, nil
}

// MostActiveStation returns the station with the most measurement rows,
// breaking ties by the lexically smallest station id
func (q *climateQueries) MostActiveStation(ctx context.Context) (*models.StationActivity, error) {
	query := `
		SELECT station, COUNT(*) AS measurement_count
		FROM measurement
		GROUP BY station
		ORDER BY measurement_count DESC, station ASC
		LIMIT 1
	`

	var activity models.StationActivity
	err := q.session.GetContext(ctx, "most_active_station", &activity, query)

	if err == sql.ErrNoRows {
		return nil, ErrEmptyDataset
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get most active station: %w", err)
	}

	return &activity, nil
}

// TemperatureObservations returns (date, tobs) for one station with date >= since
func (q *climateQueries) TemperatureObservations(ctx context.Context, stationID string, since models.Date) ([]models.TemperatureObservation, error) {
	query := `
		SELECT date, tobs
		FROM measurement
		WHERE station = ?
		  AND date >= ?
	`

	var observations []models.TemperatureObservation
	if err := q.session.SelectContext(ctx, "temperature_observations", &observations, query, stationID, since); err != nil {
		return nil, fmt.Errorf("failed to get temperature observations: %w", err)
	}

	return observations, nil
}

// TemperatureStats aggregates tobs over the date range. The aggregate
// always yields one row; with nothing matched every column is NULL.
func (q *climateQueries) TemperatureStats(ctx context.Context, r models.DateRange) (*models.TemperatureStats, error) {
	query := `
		SELECT
			MIN(tobs) AS tmin,
			AVG(tobs) AS tavg,
			MAX(tobs) AS tmax
		FROM measurement
		WHERE date >= ?
	`
	args := []interface{}{r.Start}

	if r.End != nil {
		query += " AND date <= ?"
		args = append(args, *r.End)
	}

	var stats models.TemperatureStats
	if err := q.session.GetContext(ctx, "temperature_stats", &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to calculate temperature stats: %w", err)
	}

	return &stats, nil
}
