package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used throughout the dataset
const DateLayout = "2006-01-02"

// LookbackDays is the width of the "last 12 months" window
const LookbackDays = 365

// Date is an ISO YYYY-MM-DD string as stored in the dataset.
// Comparisons against it in SQL are lexical.
type Date string

// Scan accepts TEXT, BLOB or a driver-parsed timestamp. NULL scans as "".
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case string:
		*d = Date(v)
	case []byte:
		*d = Date(v)
	case time.Time:
		*d = Date(v.Format(DateLayout))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

func (d Date) String() string {
	return string(d)
}

// Time parses the date. Only well-formed dates parse.
func (d Date) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "date",
			Value:   string(d),
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}
	return t, nil
}

// CutoffDate returns the date LookbackDays before last
func CutoffDate(last Date) (Date, error) {
	t, err := last.Time()
	if err != nil {
		return "", err
	}
	return Date(t.AddDate(0, 0, -LookbackDays).Format(DateLayout)), nil
}

// Measurement is one weather observation row of the measurement table
type Measurement struct {
	StationID              string   `json:"station" db:"station"`
	Date                   Date     `json:"date" db:"date"`
	Precipitation          *float64 `json:"prcp" db:"prcp"`
	TemperatureObservation *float64 `json:"tobs" db:"tobs"`
}

// Station is a weather-reporting location from the station table.
// The descriptive columns are optional in the dataset.
type Station struct {
	StationID string   `json:"station" db:"station"`
	Name      string   `json:"name" db:"name"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
	Elevation *float64 `json:"elevation,omitempty" db:"elevation"`
}

// StationSummary is the shape served by the station list
type StationSummary struct {
	StationID string `json:"station" db:"station"`
	Name      string `json:"name" db:"name"`
}

// PrecipitationReading is one (date, prcp) pair
type PrecipitationReading struct {
	Date          Date     `db:"date"`
	Precipitation *float64 `db:"prcp"`
}

// PrecipitationSeries maps a date to its precipitation value, null kept
type PrecipitationSeries map[Date]*float64

// NewPrecipitationSeries folds readings into a series. Readings sharing a
// date overwrite each other in slice order, so the last one wins.
func NewPrecipitationSeries(readings []PrecipitationReading) PrecipitationSeries {
	series := make(PrecipitationSeries, len(readings))
	for _, r := range readings {
		series[r.Date] = r.Precipitation
	}
	return series
}

// TemperatureObservation is one (date, tobs) pair for a station
type TemperatureObservation struct {
	Date                   Date     `json:"date" db:"date"`
	TemperatureObservation *float64 `json:"tobs" db:"tobs"`
}

// StationActivity counts measurement rows for a station
type StationActivity struct {
	StationID        string `json:"station" db:"station"`
	MeasurementCount int    `json:"count" db:"measurement_count"`
}

// TemperatureStats holds MIN/AVG/MAX of tobs over a date filter.
// All three are nil when nothing matched.
type TemperatureStats struct {
	Min *float64 `json:"TMIN" db:"tmin"`
	Avg *float64 `json:"TAVG" db:"tavg"`
	Max *float64 `json:"TMAX" db:"tmax"`
}

// DateRange is an inclusive filter on measurement.date. A nil End means
// open-ended. Bounds are raw request strings and are not validated.
type DateRange struct {
	Start string
	End   *string
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q", e.Message, e.Value)
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
