package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/radiusdt/vector-analytics/internal/models"
)

// seasonalityThreshold is the minimum autocorrelation for a pattern to count
// as detected. The value is empirical; it is applied uniformly to every
// candidate period.
const seasonalityThreshold = 0.3

// seasonalPeriods are the candidate period lengths, in series points.
var seasonalPeriods = []int{7}

// AnalyzeTrend fits a linear trend over the ordered series, probes it for
// seasonality and computes descriptive statistics. Pure: no wall-clock reads.
//
// Series shorter than two points return the neutral result (stable, zero
// strength and confidence, no seasonality) with statistics over whatever
// points exist.
func AnalyzeTrend(series []models.SeriesPoint) models.TrendResult {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	result := models.TrendResult{
		Direction:  models.TrendStable,
		Statistics: describe(values),
	}

	if len(values) < 2 {
		return result
	}

	slope, r2 := fitLine(values)
	result.Strength = math.Abs(slope)
	result.Confidence = r2

	switch {
	case slope > 0:
		result.Direction = models.TrendIncreasing
	case slope < 0:
		result.Direction = models.TrendDecreasing
	}

	result.Seasonality = detectSeasonality(values)

	return result
}

// fitLine runs ordinary least squares of value against index 0..n-1 and
// returns the slope and R². A constant series has zero total variance; by
// convention that is a perfect fit (R² = 1) with zero slope.
func fitLine(values []float64) (slope, r2 float64) {
	n := float64(len(values))

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	mean := sumY / n
	var ssRes, ssTot float64
	for i, v := range values {
		fit := intercept + slope*float64(i)
		ssRes += (v - fit) * (v - fit)
		ssTot += (v - mean) * (v - mean)
	}

	if ssTot == 0 {
		return 0, 1
	}

	r2 = 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return slope, r2
}

// detectSeasonality probes each candidate period with shifted
// autocorrelations at lags 1..p and reports the strongest one. Periods
// longer than half the series are skipped.
func detectSeasonality(values []float64) models.Seasonality {
	n := len(values)

	var best models.Seasonality
	var bestCorr float64

	for _, p := range seasonalPeriods {
		if n < 2*p {
			continue
		}
		for lag := 1; lag <= p; lag++ {
			corr := autocorrelation(values, lag)
			if corr > bestCorr {
				bestCorr = corr
				best.Pattern = patternName(lag)
			}
		}
	}

	if bestCorr > seasonalityThreshold {
		best.Detected = true
		best.Strength = math.Min(bestCorr, 1)
	} else {
		best.Pattern = ""
	}

	return best
}

func patternName(lag int) string {
	if lag == 7 {
		return "weekly"
	}
	return fmt.Sprintf("%d-day", lag)
}

// autocorrelation is the Pearson correlation of the series against itself
// shifted by lag points. Zero variance on either side yields 0.
func autocorrelation(values []float64, lag int) float64 {
	n := len(values) - lag
	if n < 2 {
		return 0
	}

	a := values[:n]
	b := values[lag:]

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}

// describe computes population statistics over the raw values.
func describe(values []float64) models.SeriesStats {
	n := len(values)
	if n == 0 {
		return models.SeriesStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return models.SeriesStats{
		Mean:              mean,
		Median:            median,
		Min:               sorted[0],
		Max:               sorted[n-1],
		StandardDeviation: math.Sqrt(sumSq / float64(n)),
	}
}
