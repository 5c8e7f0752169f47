package models

// TrendDirection classifies the slope of a fitted trend line.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// SeriesPoint is one (date, value) observation of a time series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Seasonality describes a detected repeating pattern in a series.
type Seasonality struct {
	Detected bool   `json:"detected"`
	Pattern  string `json:"pattern,omitempty"`
	// Strength is the maximum autocorrelation found, clamped to [0,1].
	Strength float64 `json:"strength,omitempty"`
}

// SeriesStats holds descriptive statistics of a series (population, not sample).
type SeriesStats struct {
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	StandardDeviation float64 `json:"standard_deviation"`
}

// TrendResult is the output of the trend analyzer over an ordered series.
type TrendResult struct {
	Direction TrendDirection `json:"direction"`
	// Strength is the absolute slope of the fitted line.
	Strength float64 `json:"strength"`
	// Confidence is the coefficient of determination (R²), in [0,1].
	Confidence  float64     `json:"confidence"`
	Seasonality Seasonality `json:"seasonality"`
	Statistics  SeriesStats `json:"statistics"`
}
