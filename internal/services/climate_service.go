package services

import (
	"context"
	"errors"
	"fmt"

	"climate-api/internal/models"
	"climate-api/internal/repository"
	"climate-api/pkg/logging"
	"climate-api/pkg/metrics"
)

// ClimateService answers the climate API queries. Each method runs all of
// its queries inside one repository session.
type ClimateService struct {
	repo    repository.ClimateRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClimateService creates a new climate service
func NewClimateService(repo repository.ClimateRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ClimateService {
	return &ClimateService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Precipitation returns date → prcp for the 365 days ending on the
// dataset's last date. Duplicate dates keep the last row read.
func (s *ClimateService) Precipitation(ctx context.Context) (models.PrecipitationSeries, error) {
	var series models.PrecipitationSeries

	err := s.repo.View(ctx, func(q repository.ClimateQueries) error {
		cutoff, err := lastYearCutoff(ctx, q)
		if err != nil {
			return err
		}

		readings, err := q.PrecipitationSince(ctx, cutoff)
		if err != nil {
			return err
		}

		series = models.NewPrecipitationSeries(readings)

		s.logger.Debug(ctx, "[SERVICE_PRECIPITATION] Precipitation window loaded", logging.Fields{
			"cutoff":      cutoff,
			"rows":        len(readings),
			"unique_days": len(series),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return series, nil
}

// Stations returns every station as {station, name}
func (s *ClimateService) Stations(ctx context.Context) ([]models.StationSummary, error) {
	stations := []models.StationSummary{}

	err := s.repo.View(ctx, func(q repository.ClimateQueries) error {
		rows, err := q.ListStations(ctx)
		if err != nil {
			return err
		}
		stations = append(stations, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stations, nil
}

// MostActiveStationObservations returns the last year of temperature
// observations for the station with the most measurements. The window is
// anchored on the last date of the whole dataset, not of that station.
func (s *ClimateService) MostActiveStationObservations(ctx context.Context) ([]models.TemperatureObservation, error) {
	observations := []models.TemperatureObservation{}

	err := s.repo.View(ctx, func(q repository.ClimateQueries) error {
		station, err := q.MostActiveStation(ctx)
		if err != nil {
			return err
		}

		cutoff, err := lastYearCutoff(ctx, q)
		if err != nil {
			return err
		}

		rows, err := q.TemperatureObservations(ctx, station.StationID, cutoff)
		if err != nil {
			return err
		}
		observations = append(observations, rows...)

		s.logger.Debug(ctx, "[SERVICE_TOBS] Most active station observations loaded", logging.Fields{
			"station_id":        station.StationID,
			"measurement_count": station.MeasurementCount,
			"cutoff":            cutoff,
			"rows":              len(rows),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return observations, nil
}

// TemperatureStats returns TMIN/TAVG/TMAX over the range. Bounds are not
// validated; a range matching nothing yields all-null stats.
func (s *ClimateService) TemperatureStats(ctx context.Context, r models.DateRange) (*models.TemperatureStats, error) {
	var stats *models.TemperatureStats

	err := s.repo.View(ctx, func(q repository.ClimateQueries) error {
		var err error
		stats, err = q.TemperatureStats(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DatasetSummary describes the loaded dataset
type DatasetSummary struct {
	StationCount int                      `json:"station_count"`
	LastDate     models.Date              `json:"last_date,omitempty"`
	Cutoff       models.Date              `json:"cutoff,omitempty"`
	Activity     []models.StationActivity `json:"activity"`
}

// Summary reports station count, date window and per-station activity.
// An empty dataset is not an error here.
func (s *ClimateService) Summary(ctx context.Context) (*DatasetSummary, error) {
	summary := &DatasetSummary{}

	err := s.repo.View(ctx, func(q repository.ClimateQueries) error {
		stations, err := q.ListStations(ctx)
		if err != nil {
			return err
		}
		summary.StationCount = len(stations)

		summary.Activity, err = q.StationActivity(ctx)
		if err != nil {
			return err
		}

		last, err := q.LastMeasurementDate(ctx)
		if errors.Is(err, repository.ErrEmptyDataset) {
			return nil
		}
		if err != nil {
			return err
		}
		summary.LastDate = last

		summary.Cutoff, err = models.CutoffDate(last)
		return err
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// HealthCheck reports whether the dataset is reachable
func (s *ClimateService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func lastYearCutoff(ctx context.Context, q repository.ClimateQueries) (models.Date, error) {
	last, err := q.LastMeasurementDate(ctx)
	if err != nil {
		return "", err
	}

	cutoff, err := models.CutoffDate(last)
	if err != nil {
		return "", fmt.Errorf("failed to compute cutoff from last date: %w", err)
	}

	return cutoff, nil
}
