// Package align joins two time-stamped datasets on calendar day.
package align

import (
	"errors"
	"fmt"
	"sort"

	"github.com/KaramelBytes/correlate-cli/internal/parser"
)

// ErrNoRecords is returned by Validate for a dataset without rows.
var ErrNoRecords = errors.New("dataset has no records")

// Dataset is a parsed table plus the two fields used for alignment.
type Dataset struct {
	Name       string
	Records    []parser.Record
	TimeField  string
	ValueField string
}

// Validate checks that the dataset has rows and that both fields are keys of
// the first record, which fixes the schema.
func (d Dataset) Validate() error {
	if len(d.Records) == 0 {
		return fmt.Errorf("%s: %w", d.label(), ErrNoRecords)
	}
	for _, field := range []string{d.TimeField, d.ValueField} {
		if _, err := d.Records[0].Lookup(field); err != nil {
			return err
		}
	}
	return nil
}

func (d Dataset) label() string {
	if d.Name == "" {
		return "dataset"
	}
	return d.Name
}

// Point is one day present in both datasets.
type Point struct {
	Date   string  `json:"date"`
	Value1 float64 `json:"value1"`
	Value2 float64 `json:"value2"`
}

// Series is an aligned sequence sorted by date with unique dates.
type Series []Point

// Values splits the series into its two value columns.
func (s Series) Values() (x, y []float64) {
	x = make([]float64, len(s))
	y = make([]float64, len(s))
	for i, p := range s {
		x[i] = p.Value1
		y[i] = p.Value2
	}
	return x, y
}

// Dates returns the day keys in series order.
func (s Series) Dates() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Stats counts how the records of one dataset were consumed.
type Stats struct {
	Records        int `json:"records"`
	Used           int `json:"used"`
	SkippedMissing int `json:"skipped_missing"`
	SkippedTime    int `json:"skipped_time"`
	SkippedValue   int `json:"skipped_value"`
	Days           int `json:"days"`
}

// Skipped is the number of records that did not contribute.
func (s Stats) Skipped() int { return s.SkippedMissing + s.SkippedTime + s.SkippedValue }

// DailyMeans buckets a dataset by UTC day and averages each bucket. Records
// with a null or absent field, an unparseable timestamp, or a non-finite
// value are skipped.
func DailyMeans(d Dataset) (map[string]float64, Stats) {
	st := Stats{Records: len(d.Records)}
	buckets := make(map[string][]float64)
	for _, rec := range d.Records {
		tv, ok1 := rec[d.TimeField]
		vv, ok2 := rec[d.ValueField]
		if !ok1 || !ok2 || tv.IsNull() || vv.IsNull() {
			st.SkippedMissing++
			continue
		}
		ts, ok := ParseTimestamp(tv)
		if !ok {
			st.SkippedTime++
			continue
		}
		val, ok := ParseValue(vv)
		if !ok {
			st.SkippedValue++
			continue
		}
		key := DayKey(ts)
		buckets[key] = append(buckets[key], val)
		st.Used++
	}

	means := make(map[string]float64, len(buckets))
	for day, vals := range buckets {
		// summing in sorted order keeps the mean independent of row order
		sort.Float64s(vals)
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		means[day] = sum / float64(len(vals))
	}
	st.Days = len(means)
	return means, st
}

// Align returns the inner join of the two datasets' daily means, sorted
// ascending by date.
func Align(d1, d2 Dataset) Series {
	s, _, _ := AlignWithStats(d1, d2)
	return s
}

// AlignWithStats is Align plus per-dataset consumption counts.
func AlignWithStats(d1, d2 Dataset) (Series, Stats, Stats) {
	m1, st1 := DailyMeans(d1)
	m2, st2 := DailyMeans(d2)

	out := make(Series, 0, min(len(m1), len(m2)))
	for day, v1 := range m1 {
		if v2, ok := m2[day]; ok {
			out = append(out, Point{Date: day, Value1: v1, Value2: v2})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, st1, st2
}
