package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the date format used in station files.
const DateLayout = "20060102"

// Station represents a weather monitoring station. Code is the external
// identifier taken from the source file name; ID is assigned by the store.
type Station struct {
	ID    int64   `json:"-" db:"id"`
	Code  string  `json:"station_code" db:"code"`
	State *string `json:"state,omitempty" db:"state"`
	Name  *string `json:"name,omitempty" db:"name"`
}

// WeatherRecord is one station's measurements for one calendar date.
// Nil measurements were reported as missing.
type WeatherRecord struct {
	ID        int64      `json:"-" db:"id"`
	StationID int64      `json:"-" db:"station_id"`
	Date      time.Time  `json:"date" db:"observation_date"`
	MaxTempC  *float64   `json:"max_temp_c" db:"max_temp_c"`
	MinTempC  *float64   `json:"min_temp_c" db:"min_temp_c"`
	PrecipCm  *float64   `json:"precip_cm" db:"precip_cm"`
	CreatedAt time.Time  `json:"-" db:"created_at"`
	UpdatedAt *time.Time `json:"-" db:"updated_at"`
}

// YearlyStat holds the aggregates of one station's records for one year.
// Nil aggregates had no contributing values.
type YearlyStat struct {
	ID            int64    `json:"-" db:"id"`
	StationID     int64    `json:"-" db:"station_id"`
	Year          int      `json:"year" db:"year"`
	AvgMaxTempC   *float64 `json:"avg_max_temp_c" db:"avg_max_temp_c"`
	AvgMinTempC   *float64 `json:"avg_min_temp_c" db:"avg_min_temp_c"`
	TotalPrecipCm *float64 `json:"total_precip_cm" db:"total_precip_cm"`
}

// StationYear keys a YearlyStat.
type StationYear struct {
	StationID int64
	Year      int
}

func (k StationYear) String() string {
	return fmt.Sprintf("%d/%d", k.StationID, k.Year)
}

// Less orders keys by station then year.
func (k StationYear) Less(o StationYear) bool {
	if k.StationID != o.StationID {
		return k.StationID < o.StationID
	}
	return k.Year < o.Year
}

// ParsedObservation is a successfully parsed station file line.
type ParsedObservation struct {
	Date     time.Time
	MaxTempC *float64
	MinTempC *float64
	PrecipCm *float64
}

// Record binds the observation to a stored station.
func (p *ParsedObservation) Record(stationID int64) *WeatherRecord {
	return &WeatherRecord{
		StationID: stationID,
		Date:      p.Date,
		MaxTempC:  p.MaxTempC,
		MinTempC:  p.MinTempC,
		PrecipCm:  p.PrecipCm,
	}
}

// ObservationView is a daily record as served by the query API.
type ObservationView struct {
	StationCode string   `json:"station_code" db:"station_code"`
	Date        JSONDate `json:"date" db:"observation_date"`
	MaxTempC    *float64 `json:"max_temp_c" db:"max_temp_c"`
	MinTempC    *float64 `json:"min_temp_c" db:"min_temp_c"`
	PrecipCm    *float64 `json:"precip_cm" db:"precip_cm"`
}

// YearlyStatView is a yearly aggregate as served by the query API.
type YearlyStatView struct {
	StationCode   string   `json:"station_code" db:"station_code"`
	Year          int      `json:"year" db:"year"`
	AvgMaxTempC   *float64 `json:"avg_max_temp_c" db:"avg_max_temp_c"`
	AvgMinTempC   *float64 `json:"avg_min_temp_c" db:"avg_min_temp_c"`
	TotalPrecipCm *float64 `json:"total_precip_cm" db:"total_precip_cm"`
}

// ErrInvalidDate marks a line whose date field cannot be parsed. It aborts
// ingestion, unlike lines with the wrong number of fields which are skipped.
var ErrInvalidDate = errors.New("invalid observation date")

// ErrInvalidValue marks a line whose numeric field is not an integer.
var ErrInvalidValue = errors.New("invalid observation value")

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Kind    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Message, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
