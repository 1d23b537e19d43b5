package status

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
)

// Report is the tracker's own metric series, folded from one scrape.
type Report struct {
	SamplesAccepted float64
	SamplesFiltered float64

	// Attempts and Fetches are keyed by the outcome label.
	Attempts map[string]float64
	Fetches  map[string]float64

	FetchCount      uint64
	FetchSecondsSum float64

	CacheHits        float64
	PhotosStored     float64
	Fetching         bool
	ObserverAttached bool
	AlertsFired      float64
	JournalDropped   float64
}

// MeanFetchSeconds is the average fetch wall time, or 0 before any fetch.
func (r *Report) MeanFetchSeconds() float64 {
	if r.FetchCount == 0 {
		return 0
	}
	return r.FetchSecondsSum / float64(r.FetchCount)
}

func buildReport(mfs map[string]*dto.MetricFamily) *Report {
	r := &Report{
		Attempts: byLabel(mfs[metrics.FetchAttemptsTotal], "outcome"),
		Fetches:  byLabel(mfs[metrics.FetchesTotal], "outcome"),
	}
	samples := byLabel(mfs[metrics.SamplesTotal], "result")
	r.SamplesAccepted = samples["accepted"]
	r.SamplesFiltered = samples["filtered"]

	if mf := mfs[metrics.FetchDuration]; mf != nil {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				r.FetchCount += h.GetSampleCount()
				r.FetchSecondsSum += h.GetSampleSum()
			}
		}
	}

	r.CacheHits = sumFamily(mfs[metrics.CacheHitsTotal])
	r.PhotosStored = sumFamily(mfs[metrics.PhotosStoredTotal])
	r.Fetching = sumFamily(mfs[metrics.FetchInFlight]) > 0
	r.ObserverAttached = sumFamily(mfs[metrics.ObserverAttached]) > 0
	r.AlertsFired = sumFamily(mfs[metrics.AlertsFiredTotal])
	r.JournalDropped = sumFamily(mfs[metrics.JournalDropped])
	return r
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// byLabel sums a family's values grouped by the value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += value(m)
			}
		}
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
