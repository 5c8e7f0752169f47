package models

import "fmt"

// MetricField names a selectable metric of an aggregate. It replaces dynamic
// string-keyed struct access with an exhaustive, typed selector.
type MetricField string

const (
	FieldSpend       MetricField = "spend"
	FieldRevenue     MetricField = "revenue"
	FieldImpressions MetricField = "impressions"
	FieldClicks      MetricField = "clicks"
	FieldConversions MetricField = "conversions"
	FieldCTR         MetricField = "ctr"
	FieldCPC         MetricField = "cpc"
	FieldCPM         MetricField = "cpm"
	FieldCPA         MetricField = "cpa"
	FieldROAS        MetricField = "roas"
	FieldROI         MetricField = "roi"
)

// AllMetricFields lists every selectable metric name.
var AllMetricFields = []MetricField{
	FieldSpend, FieldRevenue, FieldImpressions, FieldClicks, FieldConversions,
	FieldCTR, FieldCPC, FieldCPM, FieldCPA, FieldROAS, FieldROI,
}

// ParseMetricField validates a metric name at the boundary.
func ParseMetricField(s string) (MetricField, error) {
	f := MetricField(s)
	for _, known := range AllMetricFields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// ValueOf returns the value of this field from an aggregate.
func (f MetricField) ValueOf(m AggregatedMetrics) float64 {
	switch f {
	case FieldSpend:
		return m.TotalSpend
	case FieldRevenue:
		return m.TotalRevenue
	case FieldImpressions:
		return float64(m.TotalImpressions)
	case FieldClicks:
		return float64(m.TotalClicks)
	case FieldConversions:
		return float64(m.TotalConversions)
	case FieldCTR:
		return m.AverageCTR
	case FieldCPC:
		return m.AverageCPC
	case FieldCPM:
		return m.AverageCPM
	case FieldCPA:
		return m.AverageCPA
	case FieldROAS:
		return m.AverageROAS
	case FieldROI:
		return m.AverageROI
	}
	return 0
}
