package models

import "time"

// WeekStart returns the Monday-aligned start of the week containing t.
// No timezone conversion happens here; ingestion owns normalization.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -offset)
}

// BucketKey returns the grouping bucket a record falls into.
// Day keys are the literal date, week keys the Monday-aligned week start,
// month keys "YYYY-MM".
func BucketKey(r MetricRecord, key GroupKey) string {
	switch key {
	case GroupByDay:
		return r.Date.Format("2006-01-02")
	case GroupByWeek:
		return WeekStart(r.Date).Format("2006-01-02")
	case GroupByMonth:
		return r.Date.Format("2006-01")
	case GroupByCampaign:
		return r.CampaignID
	case GroupByPlatform:
		return string(r.Platform)
	}
	return ""
}
