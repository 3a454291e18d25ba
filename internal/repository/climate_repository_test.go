package repository

import (
	"context"
	"errors"
	"testing"

	"climate-api/internal/models"
	"climate-api/internal/repository/repotest"
	"climate-api/pkg/logging"
)

func newTestRepository(t *testing.T, stations []models.Station, measurements []models.Measurement) ClimateRepository {
	t.Helper()
	db := repotest.Open(t, repotest.WriteDataset(t, stations, measurements))
	return NewClimateRepository(db, logging.Discard(), repotest.NewMetrics())
}

func newHawaiiRepository(t *testing.T) ClimateRepository {
	t.Helper()
	stations, measurements := repotest.Hawaii()
	return newTestRepository(t, stations, measurements)
}

func view(t *testing.T, repo ClimateRepository, fn func(q ClimateQueries) error) {
	t.Helper()
	if err := repo.View(context.Background(), fn); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestLastMeasurementDate(t *testing.T) {
	repo := newHawaiiRepository(t)

	view(t, repo, func(q ClimateQueries) error {
		last, err := q.LastMeasurementDate(context.Background())
		if err != nil {
			return err
		}
		if last != "2017-08-23" {
			t.Errorf("LastMeasurementDate = %q, want 2017-08-23", last)
		}
		return nil
	})
}

func TestLastMeasurementDate_Empty(t *testing.T) {
	repo := newTestRepository(t, nil, nil)

	err := repo.View(context.Background(), func(q ClimateQueries) error {
		_, err := q.LastMeasurementDate(context.Background())
		return err
	})

	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("error = %v, want ErrEmptyDataset", err)
	}
}

func TestPrecipitationSince(t *testing.T) {
	repo := newHawaiiRepository(t)

	view(t, repo, func(q ClimateQueries) error {
		readings, err := q.PrecipitationSince(context.Background(), "2016-08-23")
		if err != nil {
			return err
		}

		if len(readings) != 7 {
			t.Fatalf("got %d readings, want 7", len(readings))
		}
		for _, r := range readings {
			if r.Date < "2016-08-23" {
				t.Errorf("reading %s is before the cutoff", r.Date)
			}
		}

		// Table order is preserved, so the duplicate 2017-08-23 rows
		// arrive 0.0 then 0.45.
		last := readings[len(readings)-1]
		if last.Date != "2017-08-23" || last.Precipitation == nil || *last.Precipitation != 0.45 {
			t.Errorf("last reading = %+v, want 2017-08-23 0.45", last)
		}
		return nil
	})
}

func TestListStations(t *testing.T) {
	stations, measurements := repotest.Hawaii()
	repo := newTestRepository(t, stations, measurements)

	view(t, repo, func(q ClimateQueries) error {
		got, err := q.ListStations(context.Background())
		if err != nil {
			return err
		}

		if len(got) != len(stations) {
			t.Fatalf("got %d stations, want %d", len(got), len(stations))
		}
		for i, s := range stations {
			if got[i].StationID != s.StationID || got[i].Name != s.Name {
				t.Errorf("station[%d] = %+v, want %s %s", i, got[i], s.StationID, s.Name)
			}
		}
		return nil
	})
}

func TestListStations_Empty(t *testing.T) {
	repo := newTestRepository(t, nil, nil)

	view(t, repo, func(q ClimateQueries) error {
		got, err := q.ListStations(context.Background())
		if err != nil {
			return err
		}
		if len(got) != 0 {
			t.Errorf("got %d stations, want 0", len(got))
		}
		return nil
	})
}

func TestMostActiveStation(t *testing.T) {
	repo := newHawaiiRepository(t)

	view(t, repo, func(q ClimateQueries) error {
		got, err := q.MostActiveStation(context.Background())
		if err != nil {
			return err
		}

		if got.StationID != "USC00519281" || got.MeasurementCount != 4 {
			t.Errorf("MostActiveStation = %+v, want USC00519281 with 4", got)
		}

		all, err := q.StationActivity(context.Background())
		if err != nil {
			return err
		}
		for _, a := range all {
			if a.MeasurementCount > got.MeasurementCount {
				t.Errorf("station %s has %d rows, more than the most active", a.StationID, a.MeasurementCount)
			}
		}
		return nil
	})
}

func TestMostActiveStation_TieBreaksOnStationID(t *testing.T) {
	measurements := []models.Measurement{
		{StationID: "USC00000002", Date: "2017-01-01", TemperatureObservation: repotest.F(70)},
		{StationID: "USC00000002", Date: "2017-01-02", TemperatureObservation: repotest.F(71)},
		{StationID: "USC00000001", Date: "2017-01-01", TemperatureObservation: repotest.F(72)},
		{StationID: "USC00000001", Date: "2017-01-02", TemperatureObservation: repotest.F(73)},
	}
	repo := newTestRepository(t, nil, measurements)

	view(t, repo, func(q ClimateQueries) error {
		got, err := q.MostActiveStation(context.Background())
		if err != nil {
			return err
		}
		if got.StationID != "USC00000001" {
			t.Errorf("MostActiveStation = %s, want USC00000001", got.StationID)
		}

		all, err := q.StationActivity(context.Background())
		if err != nil {
			return err
		}
		if len(all) != 2 || all[0].StationID != "USC00000001" || all[1].StationID != "USC00000002" {
			t.Errorf("StationActivity = %+v", all)
		}
		return nil
	})
}

func TestMostActiveStation_Empty(t *testing.T) {
	repo := newTestRepository(t, nil, nil)

	err := repo.View(context.Background(), func(q ClimateQueries) error {
		_, err := q.MostActiveStation(context.Background())
		return err
	})

	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("error = %v, want ErrEmptyDataset", err)
	}
}

func TestTemperatureObservations(t *testing.T) {
	repo := newHawaiiRepository(t)

	view(t, repo, func(q ClimateQueries) error {
		got, err := q.TemperatureObservations(context.Background(), "USC00519281", "2016-08-23")
		if err != nil {
			return err
		}

		want := []models.Date{"2016-08-23", "2017-01-15", "2017-08-18"}
		if len(got) != len(want) {
			t.Fatalf("got %d observations, want %d", len(got), len(want))
		}
		for i, d := range want {
			if got[i].Date != d {
				t.Errorf("observation[%d].Date = %s, want %s", i, got[i].Date, d)
			}
			if got[i].TemperatureObservation == nil {
				t.Errorf("observation[%d].tobs is nil", i)
			}
		}
		return nil
	})
}

func TestTemperatureStats(t *testing.T) {
	end := "2017-01-31"
	emptyEnd := "2017-01-09"

	tests := []struct {
		name    string
		r       models.DateRange
		wantNil bool
		min     float64
		avg     float64
		max     float64
	}{
		{
			name: "inclusive range",
			r:    models.DateRange{Start: "2017-01-01", End: &end},
			min:  60, avg: 70, max: 80,
		},
		{
			name: "start only",
			r:    models.DateRange{Start: "2017-08-18"},
			min:  79, avg: 80.66666666666667, max: 82,
		},
		{
			name: "start equals end",
			r:    models.DateRange{Start: "2017-01-20", End: func() *string { s := "2017-01-20"; return &s }()},
			min:  80, avg: 80, max: 80,
		},
		{
			name:    "future start",
			r:       models.DateRange{Start: "2099-01-01"},
			wantNil: true,
		},
		{
			name:    "empty range",
			r:       models.DateRange{Start: "2017-01-01", End: &emptyEnd},
			wantNil: true,
		},
		{
			name:    "malformed start sorts after every date",
			r:       models.DateRange{Start: "not-a-date"},
			wantNil: true,
		},
	}

	repo := newHawaiiRepository(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view(t, repo, func(q ClimateQueries) error {
				got, err := q.TemperatureStats(context.Background(), tt.r)
				if err != nil {
					return err
				}

				if tt.wantNil {
					if got.Min != nil || got.Avg != nil || got.Max != nil {
						t.Errorf("stats = %+v, want all nil", got)
					}
					return nil
				}

				if got.Min == nil || got.Avg == nil || got.Max == nil {
					t.Fatalf("stats = %+v, want all set", got)
				}
				if *got.Min != tt.min || *got.Avg != tt.avg || *got.Max != tt.max {
					t.Errorf("stats = {%v %v %v}, want {%v %v %v}", *got.Min, *got.Avg, *got.Max, tt.min, tt.avg, tt.max)
				}
				if !(*got.Min <= *got.Avg && *got.Avg <= *got.Max) {
					t.Errorf("stats out of order: %v %v %v", *got.Min, *got.Avg, *got.Max)
				}
				return nil
			})
		})
	}
}

func TestView_PropagatesCallbackError(t *testing.T) {
	repo := newHawaiiRepository(t)
	sentinel := errors.New("stop")

	err := repo.View(context.Background(), func(q ClimateQueries) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("View error = %v, want sentinel", err)
	}

	// The session was released, so another one can start.
	view(t, repo, func(q ClimateQueries) error { return nil })
}

func TestHealthCheck(t *testing.T) {
	repo := newHawaiiRepository(t)
	if err := repo.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
