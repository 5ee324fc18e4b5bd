package forecast

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinCorpusRecords is the smallest raw corpus training will accept.
	MinCorpusRecords = 50
	// MinTrainingRows is the smallest post-filter design matrix training
	// will fit on.
	MinTrainingRows = 30
	// MinCattleHistory is the per-cow record count needed before a
	// prediction is attempted (two full lag intervals).
	MinCattleHistory = 3

	lagDepth        = 3
	unknownCategory = "unknown"
)

// FeatureColumns is the ordered design-matrix layout. The fitted artifact
// records this order and prediction must reproduce it exactly.
var FeatureColumns = []string{
	"age_days", "weight", "days_since_last_calving", "breed_encoded",
	"allows_mounting_lag1", "vaginal_discharge_lag1", "vulva_swelling_lag1", "behavior_lag1",
	"allows_mounting_lag2", "vaginal_discharge_lag2", "vulva_swelling_lag2", "behavior_lag2",
	"allows_mounting_lag3", "vaginal_discharge_lag3", "vulva_swelling_lag3", "behavior_lag3",
	"interval_lag1", "interval_lag2", "avg_last_2_intervals",
}

// FeatureRow holds the derived features for one heat record. Numeric
// fields that cannot be computed are NaN; categorical lag fields that have
// no predecessor hold the literal "unknown".
type FeatureRow struct {
	CattleID string
	HeatDate time.Time

	AgeDays          float64
	Weight           float64
	DaysSinceCalving float64
	Breed            string

	MountLag     [lagDepth]float64
	DischargeLag [lagDepth]string
	SwellingLag  [lagDepth]string
	BehaviorLag  [lagDepth]string

	IntervalLag1 float64
	IntervalLag2 float64
	AvgIntervals float64

	TargetDays float64
	HasTarget  bool
}

// BuildFeatures derives FeatureRows from loaded heat history. Records are
// partitioned per cow and stably sorted by event date, so every lag value
// references a strictly earlier record of the same cow.
func BuildFeatures(records []HeatRecord) []FeatureRow {
	var order []string
	partitions := make(map[string][]HeatRecord)
	for _, r := range records {
		if _, seen := partitions[r.CattleID]; !seen {
			order = append(order, r.CattleID)
		}
		partitions[r.CattleID] = append(partitions[r.CattleID], r)
	}

	var out []FeatureRow
	for _, cattleID := range order {
		recs := partitions[cattleID]
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].HeatDate.Before(recs[j].HeatDate)
		})

		for i, r := range recs {
			row := FeatureRow{
				CattleID: r.CattleID,
				HeatDate: r.HeatDate,
				AgeDays:  daysBetween(r.BirthDate, r.HeatDate),
				Weight:   math.NaN(),
				Breed:    categoryOrUnknown(r.Breed),

				IntervalLag1: math.NaN(),
				IntervalLag2: math.NaN(),
				AvgIntervals: math.NaN(),
				TargetDays:   math.NaN(),
			}
			if r.Weight != nil {
				row.Weight = *r.Weight
			}
			if r.LastCalvingDate != nil {
				row.DaysSinceCalving = daysBetween(*r.LastCalvingDate, r.HeatDate)
			}

			for k := 1; k <= lagDepth; k++ {
				if i-k < 0 {
					row.DischargeLag[k-1] = unknownCategory
					row.SwellingLag[k-1] = unknownCategory
					row.BehaviorLag[k-1] = unknownCategory
					continue
				}
				prev := recs[i-k]
				if prev.AllowsMounting {
					row.MountLag[k-1] = 1
				}
				row.DischargeLag[k-1] = categoryOrUnknown(prev.VaginalDischarge)
				row.SwellingLag[k-1] = categoryOrUnknown(prev.VulvaSwelling)
				row.BehaviorLag[k-1] = categoryOrUnknown(prev.Behavior)
			}

			if i >= 1 {
				row.IntervalLag1 = daysBetween(recs[i-1].HeatDate, r.HeatDate)
			}
			if i >= 2 {
				row.IntervalLag2 = daysBetween(recs[i-2].HeatDate, recs[i-1].HeatDate)
			}
			if i >= 2 {
				row.AvgIntervals = stat.Mean([]float64{row.IntervalLag1, row.IntervalLag2}, nil)
			}

			if i+1 < len(recs) {
				row.TargetDays = daysBetween(r.HeatDate, recs[i+1].HeatDate)
				row.HasTarget = true
			}

			out = append(out, row)
		}
	}
	return out
}

// Trainable reports whether the row passes the training filter: a defined
// target, a known weight and a computable first interval.
func (r FeatureRow) Trainable() bool {
	return r.HasTarget && !math.IsNaN(r.Weight) && !math.IsNaN(r.IntervalLag1)
}

func categoryOrUnknown(v string) string {
	if v == "" {
		return unknownCategory
	}
	return v
}

func daysBetween(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours() / 24)
}
