package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"
)

// fakeLoader serves canned heat history with the same error semantics as
// the database loader.
type fakeLoader struct {
	herd map[string][]HeatRecord
}

func (l *fakeLoader) LoadAll(ctx context.Context) ([]HeatRecord, error) {
	ids := make([]string, 0, len(l.herd))
	for id := range l.herd {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var all []HeatRecord
	for _, id := range ids {
		all = append(all, l.herd[id]...)
	}
	if len(all) == 0 {
		return nil, &NoDataError{}
	}
	return all, nil
}

func (l *fakeLoader) LoadCattle(ctx context.Context, cattleID string) ([]HeatRecord, error) {
	records, ok := l.herd[cattleID]
	if !ok {
		return nil, &CattleNotFoundError{CattleID: cattleID}
	}
	if len(records) < MinCattleHistory {
		return nil, &InsufficientHistoryError{CattleID: cattleID, Records: len(records)}
	}
	out := make([]HeatRecord, len(records))
	copy(out, records)
	return out, nil
}

// syntheticHerd builds cows cycling every 21 days with consistent
// observations, enough to clear both training gates.
func syntheticHerd(cows, events int) map[string][]HeatRecord {
	discharges := []string{"clear", "cloudy", "bloody"}
	herd := make(map[string][]HeatRecord, cows)
	for c := 0; c < cows; c++ {
		id := fmt.Sprintf("cow-%d", c+1)
		start := day(2025, 1, 1).AddDate(0, 0, c)
		var records []HeatRecord
		for e := 0; e < events; e++ {
			records = append(records, cowRecord(
				id,
				start.AddDate(0, 0, 21*e),
				discharges[c%len(discharges)],
				"mild",
				"restless",
				true,
			))
		}
		herd[id] = records
	}
	return herd
}

func newTestService(t *testing.T, herd map[string][]HeatRecord) (*Service, *fakeLoader) {
	t.Helper()
	store, err := NewModelStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewModelStore failed: %v", err)
	}
	loader := &fakeLoader{herd: herd}
	svc := NewService(loader, store, nil, nil)
	svc.now = func() time.Time { return day(2025, 7, 15) }
	return svc, loader
}

func TestTrainEndToEnd(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(5, 10))

	result, err := svc.Train(context.Background())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if result.RawRecords != 50 {
		t.Errorf("RawRecords = %d, want 50", result.RawRecords)
	}
	// 10 events per cow: the first lacks interval_lag1, the last a target.
	if result.RecordsUsed != 40 {
		t.Errorf("RecordsUsed = %d, want 40", result.RecordsUsed)
	}
	if result.FeatureCount != 19 {
		t.Errorf("FeatureCount = %d, want 19", result.FeatureCount)
	}
	if result.ModelVersion == "" {
		t.Error("ModelVersion is empty")
	}
}

func TestTrainRejectsSmallCorpus(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(2, 10))

	_, err := svc.Train(context.Background())
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want *InsufficientDataError", err)
	}
	if insufficient.Raw != 20 {
		t.Errorf("Raw = %d, want 20", insufficient.Raw)
	}
}

func TestTrainRejectsCorpusWithoutWeights(t *testing.T) {
	herd := syntheticHerd(5, 10)
	for id, records := range herd {
		for i := range records {
			records[i].Weight = nil
		}
		herd[id] = records
	}
	svc, _ := newTestService(t, herd)

	_, err := svc.Train(context.Background())
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want *InsufficientDataError", err)
	}
	if insufficient.Raw != 50 || insufficient.Filtered != 0 {
		t.Errorf("Raw/Filtered = %d/%d, want 50/0", insufficient.Raw, insufficient.Filtered)
	}
}

func TestTrainRejectsEmptyCorpus(t *testing.T) {
	svc, _ := newTestService(t, map[string][]HeatRecord{})

	_, err := svc.Train(context.Background())
	var noData *NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("error = %v, want *NoDataError", err)
	}
}

func TestPredictAfterTraining(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(5, 10))
	ctx := context.Background()

	trained, err := svc.Train(ctx)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	forecast, err := svc.Predict(ctx, "cow-1")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if forecast.CattleID != "cow-1" {
		t.Errorf("CattleID = %q", forecast.CattleID)
	}
	if forecast.TotalHeatRecords != 10 {
		t.Errorf("TotalHeatRecords = %d, want 10", forecast.TotalHeatRecords)
	}
	// Constant 21-day cycles: both regressors should land on the cycle.
	if math.Abs(forecast.PredictedDaysMean-21) > 3 {
		t.Errorf("PredictedDaysMean = %v, want ~21", forecast.PredictedDaysMean)
	}
	if forecast.Confidence != "High" && forecast.Confidence != "Medium" {
		t.Errorf("Confidence = %q, want High or Medium", forecast.Confidence)
	}
	if forecast.ModelVersion != trained.ModelVersion {
		t.Errorf("ModelVersion = %q, want %q", forecast.ModelVersion, trained.ModelVersion)
	}

	// cow-1 last heat: 2025-01-01 + 9*21 days.
	if forecast.LastHeatDate != "2025-07-09" {
		t.Errorf("LastHeatDate = %q, want 2025-07-09", forecast.LastHeatDate)
	}
	predicted, err := time.Parse("2006-01-02", forecast.PredictedNextHeatDate)
	if err != nil {
		t.Fatalf("bad PredictedNextHeatDate %q: %v", forecast.PredictedNextHeatDate, err)
	}
	lastHeat := day(2025, 7, 9)
	wantShift := int(math.Round(forecast.PredictedDaysMean))
	if got := lastHeat.AddDate(0, 0, wantShift); !predicted.Equal(got) {
		t.Errorf("PredictedNextHeatDate = %v, want %v", predicted, got)
	}
	wantDaysUntil := int(daysBetween(day(2025, 7, 15), predicted))
	if forecast.DaysUntilHeat != wantDaysUntil {
		t.Errorf("DaysUntilHeat = %d, want %d", forecast.DaysUntilHeat, wantDaysUntil)
	}
}

func TestPredictDeterministic(t *testing.T) {
	herd := syntheticHerd(5, 10)
	ctx := context.Background()

	a, _ := newTestService(t, herd)
	b, _ := newTestService(t, herd)
	if _, err := a.Train(ctx); err != nil {
		t.Fatalf("Train a failed: %v", err)
	}
	if _, err := b.Train(ctx); err != nil {
		t.Fatalf("Train b failed: %v", err)
	}

	fa, err := a.Predict(ctx, "cow-2")
	if err != nil {
		t.Fatalf("Predict a failed: %v", err)
	}
	fb, err := b.Predict(ctx, "cow-2")
	if err != nil {
		t.Fatalf("Predict b failed: %v", err)
	}
	if fa.PredictedDaysRF != fb.PredictedDaysRF || fa.PredictedDaysGBT != fb.PredictedDaysGBT {
		t.Errorf("independent trainings diverged: %v/%v vs %v/%v",
			fa.PredictedDaysRF, fa.PredictedDaysGBT, fb.PredictedDaysRF, fb.PredictedDaysGBT)
	}
}

func TestPredictDaysUntilCanBeNegative(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(5, 10))
	ctx := context.Background()
	if _, err := svc.Train(ctx); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// Well past any plausible predicted date.
	svc.now = func() time.Time { return day(2026, 1, 1) }

	forecast, err := svc.Predict(ctx, "cow-1")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if forecast.DaysUntilHeat >= 0 {
		t.Errorf("DaysUntilHeat = %d, want negative for an overdue forecast", forecast.DaysUntilHeat)
	}
}

func TestPredictUnknownCattle(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(5, 10))
	ctx := context.Background()
	if _, err := svc.Train(ctx); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	_, err := svc.Predict(ctx, "cow-99")
	var notFound *CattleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *CattleNotFoundError", err)
	}
	if notFound.CattleID != "cow-99" {
		t.Errorf("CattleID = %q", notFound.CattleID)
	}
}

func TestPredictHistoryGate(t *testing.T) {
	herd := syntheticHerd(5, 10)
	herd["cow-short"] = syntheticHerd(1, 2)["cow-1"]
	for i := range herd["cow-short"] {
		herd["cow-short"][i].CattleID = "cow-short"
	}
	herd["cow-edge"] = syntheticHerd(1, 3)["cow-1"]
	for i := range herd["cow-edge"] {
		herd["cow-edge"][i].CattleID = "cow-edge"
	}
	svc, _ := newTestService(t, herd)
	ctx := context.Background()
	if _, err := svc.Train(ctx); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	_, err := svc.Predict(ctx, "cow-short")
	var insufficient *InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want *InsufficientHistoryError", err)
	}
	if insufficient.Records != 2 {
		t.Errorf("Records = %d, want 2", insufficient.Records)
	}

	// Exactly the minimum history must work.
	if _, err := svc.Predict(ctx, "cow-edge"); err != nil {
		t.Errorf("Predict with %d records failed: %v", MinCattleHistory, err)
	}
}

func TestPredictRejectsUnseenCategory(t *testing.T) {
	herd := syntheticHerd(5, 10)
	svc, loader := newTestService(t, herd)
	ctx := context.Background()
	if _, err := svc.Train(ctx); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// New behavior recorded after training; the fitted encoders have never
	// seen it, so the forecast must refuse rather than guess.
	records := loader.herd["cow-1"]
	records[len(records)-2].Behavior = "head-butting"

	_, err := svc.Predict(ctx, "cow-1")
	var unknown *UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownCategoryError", err)
	}
	if unknown.Value != "head-butting" {
		t.Errorf("Value = %q", unknown.Value)
	}
}

func TestPredictWithoutTraining(t *testing.T) {
	svc, _ := newTestService(t, syntheticHerd(5, 10))

	_, err := svc.Predict(context.Background(), "cow-1")
	var notTrained *ModelNotTrainedError
	if !errors.As(err, &notTrained) {
		t.Fatalf("error = %v, want *ModelNotTrainedError", err)
	}
}

func TestConfidenceLabelBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want string
	}{
		{"identical", 21, 21, "High"},
		{"just under high boundary", 21, 22.9, "High"},
		{"exactly 2 days apart", 21, 23, "Medium"},
		{"mid medium", 21, 24, "Medium"},
		{"exactly 5 days apart", 21, 26, "Low"},
		{"wide disagreement", 21, 27, "Low"},
		{"order independent", 27, 21, "Low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceLabel(tt.a, tt.b); got != tt.want {
				t.Errorf("confidenceLabel(%v, %v) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPredictLazyLoadsPersistedArtifact(t *testing.T) {
	herd := syntheticHerd(5, 10)
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewModelStore(dir)
	if err != nil {
		t.Fatalf("NewModelStore failed: %v", err)
	}
	trainer := NewService(&fakeLoader{herd: herd}, store, nil, nil)
	trainer.now = func() time.Time { return day(2025, 7, 15) }
	trained, err := trainer.Train(ctx)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// A fresh process over the same model directory.
	store2, err := NewModelStore(dir)
	if err != nil {
		t.Fatalf("NewModelStore failed: %v", err)
	}
	reader := NewService(&fakeLoader{herd: herd}, store2, nil, nil)
	reader.now = func() time.Time { return day(2025, 7, 15) }

	forecast, err := reader.Predict(ctx, "cow-3")
	if err != nil {
		t.Fatalf("Predict after restart failed: %v", err)
	}
	if forecast.ModelVersion != trained.ModelVersion {
		t.Errorf("ModelVersion = %q, want %q", forecast.ModelVersion, trained.ModelVersion)
	}
	if math.Abs(forecast.PredictedDaysMean-21) > 3 {
		t.Errorf("PredictedDaysMean = %v, want ~21", forecast.PredictedDaysMean)
	}
}
